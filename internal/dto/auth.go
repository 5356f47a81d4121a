package dto

type RegisterRequestDTO struct {
	Login    string `json:"login" validate:"required,min=3,max=50" example:"traveller"`
	Password string `json:"password" validate:"required,min=8" example:"s3cret-pass"`
	Role     string `json:"role,omitempty" validate:"omitempty,oneof=customer vendor" example:"customer"`
}

type RegisterResponseDTO struct {
	Message string `json:"message"`
}

type LoginRequestDTO struct {
	Login    string `json:"login" validate:"required,min=3,max=50" example:"traveller"`
	Password string `json:"password" validate:"required,min=8" example:"s3cret-pass"`
}

type LoginResponseDTO struct {
	Message string `json:"message"`
}
