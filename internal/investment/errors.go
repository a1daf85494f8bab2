package investment

import (
	"errors"
	"fmt"
)

type Kind int

const (
	KindValidation Kind = iota + 1
	KindAuthorization
	KindNotFound
	KindConflict
)

func (k Kind) String() string {
	switch k {
	case KindValidation:
		return "validation"
	case KindAuthorization:
		return "authorization"
	case KindNotFound:
		return "not_found"
	case KindConflict:
		return "conflict"
	}
	return "unknown"
}

// Error is a user-facing rejection. It prints as "CODE: message" and matches any
// other *Error with the same code under errors.Is.
type Error struct {
	Kind    Kind
	Code    string
	Message string
}

func (e *Error) Error() string {
	return e.Code + ": " + e.Message
}

func (e *Error) Is(target error) bool {
	t, ok := target.(*Error)
	return ok && t.Code == e.Code
}

// KindOf returns the kind of err, or 0 when err is not an *Error.
func KindOf(err error) Kind {
	var e *Error
	if errors.As(err, &e) {
		return e.Kind
	}
	return 0
}

func newError(kind Kind, code, message string) *Error {
	return &Error{Kind: kind, Code: code, Message: message}
}

var (
	ErrNameEmpty          = newError(KindValidation, "USERNAME_INVALID", "Name cannot be empty")
	ErrNameTooLong        = newError(KindValidation, "USERNAME_INVALID", fmt.Sprintf("Name too long (max %d characters)", MaxNameLength))
	ErrRoomIDEmpty        = newError(KindValidation, "ROOM_INVALID", "Game id cannot be empty")
	ErrRoomIDTooLong      = newError(KindValidation, "ROOM_INVALID", fmt.Sprintf("Game id too long (max %d characters)", MaxRoomIDLength))
	ErrRoomFull           = newError(KindValidation, "ROOM_FULL", fmt.Sprintf("Game is full (%d/%d players)", MaxPlayers, MaxPlayers))
	ErrCompanyNameEmpty   = newError(KindValidation, "COMPANY_INVALID", "Company name cannot be empty")
	ErrCompanyNameTooLong = newError(KindValidation, "COMPANY_INVALID", fmt.Sprintf("Company name too long (max %d characters)", MaxNameLength))
	ErrCompanyExists      = newError(KindValidation, "COMPANY_EXISTS", "A company with that name already exists")
	ErrInvalidAmount      = newError(KindValidation, "INVALID_AMOUNT", "Investment amounts must be zero or more")
	ErrBudgetExceeded     = newError(KindValidation, "BUDGET_EXCEEDED", fmt.Sprintf("Total investment exceeds your budget of %d", StartingBudget))
	ErrCannotKickSelf     = newError(KindValidation, "CANNOT_KICK_SELF", "The host cannot kick themselves")

	ErrNotHost = newError(KindAuthorization, "NOT_HOST", "Only the host can do that")

	ErrRoomNotFound    = newError(KindNotFound, "ROOM_NOT_FOUND", "Game not found")
	ErrPlayerNotFound  = newError(KindNotFound, "PLAYER_NOT_FOUND", "Player not found")
	ErrCompanyNotFound = newError(KindNotFound, "COMPANY_NOT_FOUND", "Company not found")
	ErrNoInvestment    = newError(KindNotFound, "NO_INVESTMENT", "Player has not submitted investments")

	ErrInvalidPhase     = newError(KindConflict, "INVALID_PHASE", "Action not allowed in this phase")
	ErrAlreadySubmitted = newError(KindConflict, "ALREADY_SUBMITTED", "Investments already submitted")
	ErrAlreadyJoined    = newError(KindConflict, "ALREADY_JOINED", "This connection already plays in this game under another name")
)

func phaseError(action string, phase Phase) error {
	return newError(KindConflict, ErrInvalidPhase.Code, fmt.Sprintf("Cannot %s during the %s phase", action, phase))
}

func companyNotFound(name string) error {
	return newError(KindNotFound, ErrCompanyNotFound.Code, fmt.Sprintf("Company %q not found", name))
}
