package directory

import "errors"

var (
	ErrInvalidInput      = errors.New("invalid input")
	ErrUserNotFound      = errors.New("user not found")
	ErrRoleNotFound      = errors.New("role not found")
	ErrStructureNotFound = errors.New("structure not found")
	ErrConflict          = errors.New("resource conflict")
)
