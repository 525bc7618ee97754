package models

// ConsumerCredential identifies the application to the platform.
// Loaded once at startup and immutable for the process lifetime.
type ConsumerCredential struct {
	Key    string `json:"key"`
	Secret string `json:"-"`
}

// RequestToken is the short-lived token obtained at the start of a
// three-legged login. It lives only until the callback completes or the
// login attempt is abandoned; it must never be reused across logins.
type RequestToken struct {
	Token             string `json:"oauth_token"`
	TokenSecret       string `json:"-"`
	CallbackConfirmed bool   `json:"oauth_callback_confirmed"`
}

// AccessToken is the user-scoped credential obtained after consent. It is
// bound to exactly one session and signs all subsequent content-API calls
// made on that user's behalf.
type AccessToken struct {
	Token       string `json:"oauth_token"`
	TokenSecret string `json:"-"`
	UserID      string `json:"user_id"`
	ScreenName  string `json:"screen_name"`
}
