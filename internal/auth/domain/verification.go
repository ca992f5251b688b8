package domain

// CodePurpose namespaces verification codes so a code minted for one flow can
// never be redeemed by another.
type CodePurpose string

const (
	PurposeActivation    CodePurpose = "activation"
	PurposePasswordReset CodePurpose = "password_reset"
	PurposeEmailChange   CodePurpose = "email_change"
)

// CodePayload is the record stored behind a verification code.
type CodePayload interface {
	Purpose() CodePurpose
}

type ActivationPayload struct {
	UserID string `json:"user_id"`
}

func (ActivationPayload) Purpose() CodePurpose { return PurposeActivation }

type PasswordResetPayload struct {
	Email string `json:"email"`
}

func (PasswordResetPayload) Purpose() CodePurpose { return PurposePasswordReset }

type EmailChangePayload struct {
	UserID   string `json:"user_id"`
	NewEmail string `json:"new_email"`
}

func (EmailChangePayload) Purpose() CodePurpose { return PurposeEmailChange }
