package notify

import (
	"errors"
	"fmt"
	"reflect"
	"regexp"
	"strings"

	"github.com/go-playground/validator/v10"

	"eventtrack/internal/errs"
)

type Channel string

const (
	ChannelEmail Channel = "email"
	ChannelSMS   Channel = "sms"
)

var (
	emailPattern  = regexp.MustCompile(`^[a-zA-Z0-9._%+-]+@[a-zA-Z0-9.-]+\.[a-zA-Z]{2,}$`)
	phonePatterns = []*regexp.Regexp{
		regexp.MustCompile(`^0\d{9,10}$`),
		regexp.MustCompile(`^0\d{1,4}-\d{1,4}-\d{4}$`),
		regexp.MustCompile(`^\+81\d{9,10}$`),
		regexp.MustCompile(`^\+[1-9]\d{7,14}$`),
	}

	validate = newValidator()
)

// Message is a validated outbound notification.
type Message struct {
	Recipient string
	Subject   string
	Body      string
	Channel   Channel
}

// notificationRequest holds the raw body values. Fields stay untyped so a
// present but non-string value is reported as such rather than as missing.
type notificationRequest struct {
	Recipient any `json:"recipient" validate:"required,string_value"`
	Subject   any `json:"subject" validate:"required,string_value"`
	Message   any `json:"message" validate:"required,string_value"`
	Channel   any `json:"channel" validate:"required,string_value,oneof=email sms"`
}

func newValidator() *validator.Validate {
	v := validator.New(validator.WithRequiredStructEnabled())
	v.RegisterTagNameFunc(func(field reflect.StructField) string {
		name, _, _ := strings.Cut(field.Tag.Get("json"), ",")
		return name
	})
	mustRegister(v, "string_value", func(fl validator.FieldLevel) bool {
		return fl.Field().Kind() == reflect.String
	})
	mustRegister(v, "notify_email", func(fl validator.FieldLevel) bool {
		return emailPattern.MatchString(fl.Field().String())
	})
	mustRegister(v, "notify_phone", func(fl validator.FieldLevel) bool {
		phone := fl.Field().String()
		for _, pattern := range phonePatterns {
			if pattern.MatchString(phone) {
				return true
			}
		}
		return false
	})
	return v
}

func mustRegister(v *validator.Validate, tag string, fn validator.Func) {
	if err := v.RegisterValidation(tag, fn); err != nil {
		panic(fmt.Sprintf("register validation %q: %v", tag, err))
	}
}

func ValidEmail(addr string) bool {
	return validate.Var(addr, "notify_email") == nil
}

// ValidPhone accepts domestic Japanese numbers (with or without hyphens) and E.164.
func ValidPhone(phone string) bool {
	return validate.Var(phone, "notify_phone") == nil
}

// ParseMessage validates a notification request body before anything is dispatched.
func ParseMessage(body map[string]any) (Message, error) {
	req := notificationRequest{
		Recipient: body["recipient"],
		Subject:   body["subject"],
		Message:   body["message"],
		Channel:   body["channel"],
	}
	if err := validate.Struct(req); err != nil {
		return Message{}, requestError(err)
	}

	msg := Message{
		Recipient: req.Recipient.(string),
		Subject:   req.Subject.(string),
		Body:      req.Message.(string),
		Channel:   Channel(req.Channel.(string)),
	}
	switch msg.Channel {
	case ChannelEmail:
		if !ValidEmail(msg.Recipient) {
			return Message{}, errs.Validation("Invalid email address")
		}
	case ChannelSMS:
		if !ValidPhone(msg.Recipient) {
			return Message{}, errs.Validation("Invalid phone number")
		}
	}
	return msg, nil
}

// requestError maps validator failures to the public message. Missing fields
// are reported together, in request order, before any other failure.
func requestError(err error) error {
	var fieldErrs validator.ValidationErrors
	if !errors.As(err, &fieldErrs) {
		return errs.E(errs.KindValidation, "Invalid notification request", err)
	}

	var missing []string
	for _, fe := range fieldErrs {
		if fe.Tag() == "required" {
			missing = append(missing, fe.Field())
		}
	}
	if len(missing) > 0 {
		return errs.Validation("Missing required fields: " + strings.Join(missing, ", "))
	}

	fe := fieldErrs[0]
	switch fe.Tag() {
	case "string_value":
		return errs.Validation(fmt.Sprintf("Field %q must be a string", fe.Field()))
	case "oneof":
		return errs.Validation(`Invalid channel. Use "email" or "sms"`)
	default:
		return errs.Validation(fmt.Sprintf("Invalid field %q", fe.Field()))
	}
}
