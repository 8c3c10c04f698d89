package coordinator

import "fmt"

// Op - тип операции над резервными копиями.
type Op int

const (
	OpRefresh Op = iota // Загрузка списка
	OpCreate            // Создание копии
	OpRestore           // Восстановление из копии
	OpDelete            // Удаление копии
	numOps
)

func (o Op) String() string {
	switch o {
	case OpRefresh:
		return "refresh"
	case OpCreate:
		return "create"
	case OpRestore:
		return "restore"
	case OpDelete:
		return "delete"
	default:
		return fmt.Sprintf("Op(%d)", int(o))
	}
}

// fallbackMessage - сообщение для пользователя, если сервер не прислал detail.
func (o Op) fallbackMessage() string {
	switch o {
	case OpRefresh:
		return "Failed to fetch backups"
	case OpCreate:
		return "Failed to create backup"
	case OpRestore:
		return "Failed to restore backup"
	case OpDelete:
		return "Failed to delete backup"
	default:
		return "Operation failed"
	}
}

// busyMessage - сообщение при повторном запуске уже выполняющейся операции.
func (o Op) busyMessage() string {
	switch o {
	case OpCreate:
		return "Backup creation is already in progress"
	case OpRestore:
		return "Restore is already in progress"
	case OpDelete:
		return "Delete is already in progress"
	default:
		return "Operation is already in progress"
	}
}

// Phase - фаза операции.
type Phase int

const (
	PhaseIdle Phase = iota
	PhasePending
	PhaseFailed
)

func (p Phase) String() string {
	switch p {
	case PhaseIdle:
		return "idle"
	case PhasePending:
		return "pending"
	case PhaseFailed:
		return "failed"
	default:
		return fmt.Sprintf("Phase(%d)", int(p))
	}
}

// State - состояние одной операции: Idle | Pending | Failed(message).
// Поля закрыты, поэтому "выполняется и с ошибкой" получить нельзя.
type State struct {
	phase   Phase
	message string
}

// Idle - операция не выполняется, последней ошибки нет.
func Idle() State { return State{phase: PhaseIdle} }

// Pending - запрос отправлен, ответа еще нет.
func Pending() State { return State{phase: PhasePending} }

// Failed - последняя попытка завершилась ошибкой с сообщением для пользователя.
func Failed(message string) State { return State{phase: PhaseFailed, message: message} }

// Phase возвращает фазу.
func (s State) Phase() Phase { return s.phase }

// IsPending сообщает, выполняется ли операция.
func (s State) IsPending() bool { return s.phase == PhasePending }

// Err возвращает сообщение об ошибке, если состояние Failed.
func (s State) Err() (string, bool) {
	if s.phase != PhaseFailed {
		return "", false
	}
	return s.message, true
}

func (s State) String() string {
	if s.phase == PhaseFailed {
		return fmt.Sprintf("failed(%s)", s.message)
	}
	return s.phase.String()
}
