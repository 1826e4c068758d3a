package constants

const (
	ErrCodeMessageNotFound    = "MESSAGE_NOT_FOUND"
	ErrCodeValidation         = "VALIDATION_ERROR"
	ErrCodeProviderConfig     = "PROVIDER_CONFIG_ERROR"
	ErrCodeDuplicateMessage   = "DUPLICATE_MESSAGE"
	ErrCodeInternalError      = "INTERNAL_ERROR"
	ErrCodeInvalidRequestBody = "INVALID_REQUEST_BODY"
)

const (
	ErrMsgMessageNotFound    = "message not found"
	ErrMsgValidation         = "request failed validation"
	ErrMsgProviderConfig     = "provider configuration is invalid"
	ErrMsgDuplicateMessage   = "duplicate message"
	ErrMsgInternalError      = "Internal server error"
	ErrMsgInvalidRequestBody = "failed to parse request body"
)

var errorMessages = map[string]string{
	ErrCodeMessageNotFound:    ErrMsgMessageNotFound,
	ErrCodeValidation:         ErrMsgValidation,
	ErrCodeProviderConfig:     ErrMsgProviderConfig,
	ErrCodeDuplicateMessage:   ErrMsgDuplicateMessage,
	ErrCodeInternalError:      ErrMsgInternalError,
	ErrCodeInvalidRequestBody: ErrMsgInvalidRequestBody,
}

func GetErrorMessage(code string) string {
	if msg, exists := errorMessages[code]; exists {
		return msg
	}
	return ErrMsgInternalError
}

func GetHTTPStatus(code string) int {
	switch code {
	case ErrCodeInvalidRequestBody, ErrCodeValidation, ErrCodeProviderConfig:
		return 400
	case ErrCodeMessageNotFound:
		return 404
	case ErrCodeDuplicateMessage:
		return 409
	default:
		return 500
	}
}
