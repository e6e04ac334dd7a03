package services

import "customsdesk-backend/utils"

func validateInput(v any) error {
	if err := utils.ValidateStruct(v); err != nil {
		return &ValidationError{Msg: err.Error()}
	}
	return nil
}
