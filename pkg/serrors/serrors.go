package serrors

import "fmt"

// Base is a coded sentinel error. Two Base values match under errors.Is when
// their codes are equal, so wrapped copies still compare against the sentinel.
type Base struct {
	Code      string `json:"code"`
	Message   string `json:"message"`
	LocaleKey string `json:"locale_key,omitempty"`
}

func NewError(code, message, localeKey string) *Base {
	return &Base{
		Code:      code,
		Message:   message,
		LocaleKey: localeKey,
	}
}

func (b *Base) Error() string {
	return b.Message
}

func (b *Base) Is(target error) bool {
	t, ok := target.(*Base)
	if !ok || t == nil || b == nil {
		return false
	}
	return b.Code == t.Code
}

// Wrapf keeps the sentinel in the chain and adds context to the message.
func (b *Base) Wrapf(format string, args ...any) error {
	return fmt.Errorf("%w: "+format, append([]any{b}, args...)...)
}
