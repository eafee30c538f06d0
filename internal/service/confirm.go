package service

// Confirmer answers yes/no before a destructive operation touches the store.
type Confirmer interface {
	Confirm(prompt string) bool
}

type ConfirmFunc func(prompt string) bool

func (f ConfirmFunc) Confirm(prompt string) bool {
	return f(prompt)
}

var (
	Always Confirmer = ConfirmFunc(func(string) bool { return true })
	Never  Confirmer = ConfirmFunc(func(string) bool { return false })
)

const (
	DeletePrompt = "Delete this student?"
	ClearPrompt  = "Clear ALL students?"
)
