package models

type TokenRequest struct {
	Email    string `json:"email"`
	Password string `json:"password"`
}

type TokenPair struct {
	Access  string `json:"access"`
	Refresh string `json:"refresh"`
}

type RefreshRequest struct {
	Refresh string `json:"refresh"`
}

type AccessResponse struct {
	Access string `json:"access"`
}

type VerifyRequest struct {
	Token string `json:"token"`
}
