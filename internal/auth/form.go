package auth

import "context"

// ConfirmationMessage is shown after a sign-up the backend accepted.
const ConfirmationMessage = "Check your email for the confirmation link!"

// Mode selects what Submit does with the form fields.
type Mode int

const (
	ModeSignUp Mode = iota
	ModeSignIn
)

func (m Mode) String() string {
	if m == ModeSignIn {
		return "login"
	}
	return "signup"
}

// Authenticator performs the credential calls behind the form.
type Authenticator interface {
	SignUp(ctx context.Context, creds Credentials, profile Profile) error
	SignIn(ctx context.Context, creds Credentials) error
}

// Form is the sign-up / sign-in form state. Error and Message are never both set.
type Form struct {
	Mode     Mode
	Email    string
	Password string
	FullName string
	Error    string
	Message  string
}

// Submit runs the credential call for f.Mode with the fields exactly as typed. Errors are recorded verbatim in f.Error and also
// returned. A successful sign-up clears the fields and sets the confirmation message; a successful
// sign-in leaves navigation to the session change.
func (f *Form) Submit(ctx context.Context, a Authenticator) error {
	f.Error = ""
	f.Message = ""

	creds := Credentials{Email: f.Email, Password: f.Password}
	var err error
	switch f.Mode {
	case ModeSignIn:
		err = a.SignIn(ctx, creds)
	default:
		err = a.SignUp(ctx, creds, Profile{FullName: f.FullName})
	}
	if err != nil {
		f.Error = err.Error()
		return err
	}

	if f.Mode == ModeSignUp {
		f.Message = ConfirmationMessage
		f.Email = ""
		f.Password = ""
		f.FullName = ""
	}
	return nil
}

// Reset clears the feedback and the password, as happens when switching between forms.
func (f *Form) Reset(mode Mode) {
	f.Mode = mode
	f.Password = ""
	f.Error = ""
	f.Message = ""
}
