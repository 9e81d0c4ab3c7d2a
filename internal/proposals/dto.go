package proposals

type CreateRequest struct {
	Recipient     string `json:"recipient" validate:"omitempty,email"`
	ExpiresInDays int    `json:"expires_in_days" validate:"gte=0,lte=90"`
	Message       string `json:"message" validate:"max=4000"`
}

type AcceptRequest struct {
	Name string `json:"name" validate:"required,max=200"`
	Note string `json:"note" validate:"max=2000"`
}

type RejectRequest struct {
	Name   string `json:"name" validate:"required,max=200"`
	Reason string `json:"reason" validate:"max=2000"`
}
