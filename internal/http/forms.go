package http

import (
	"errors"
	"net/url"
	"reflect"
	"sort"
	"strconv"
	"strings"
	"unicode"

	"github.com/go-playground/validator/v10"

	"moneywise/internal/core"
	"moneywise/internal/services"
)

// ValidationErrors maps a form field to its first problem.
type ValidationErrors map[string]string

func (v ValidationErrors) Error() string {
	fields := make([]string, 0, len(v))
	for f := range v {
		fields = append(fields, f)
	}
	sort.Strings(fields)
	parts := make([]string, 0, len(fields))
	for _, f := range fields {
		parts = append(parts, f+": "+v[f])
	}
	return "validation failed: " + strings.Join(parts, "; ")
}

// Add records msg for field unless the field already has a message.
func (v ValidationErrors) Add(field, msg string) {
	if _, ok := v[field]; !ok {
		v[field] = msg
	}
}

// Messages returns the problems in field order, for flashing.
func (v ValidationErrors) Messages() []string {
	fields := make([]string, 0, len(v))
	for f := range v {
		fields = append(fields, f)
	}
	sort.Strings(fields)
	out := make([]string, 0, len(fields))
	for _, f := range fields {
		out = append(out, v[f])
	}
	return out
}

func (v ValidationErrors) orNil() ValidationErrors {
	if len(v) == 0 {
		return nil
	}
	return v
}

var validate = newValidator()

func newValidator() *validator.Validate {
	v := validator.New(validator.WithRequiredStructEnabled())
	v.RegisterTagNameFunc(func(f reflect.StructField) string {
		return f.Tag.Get("form")
	})
	custom := map[string]validator.Func{
		"singleline": func(fl validator.FieldLevel) bool {
			return !strings.ContainsFunc(fl.Field().String(), unicode.IsControl)
		},
		"currency": func(fl validator.FieldLevel) bool {
			return core.IsSupportedCurrency(fl.Field().String())
		},
	}
	for tag, fn := range custom {
		if err := v.RegisterValidation(tag, fn); err != nil {
			panic(err)
		}
	}
	return v
}

// check runs the validate tags of form. Each field reports its first failing
// rule: "required" and "singleline" use the label tag, other rules the msg tag.
func check(form any) ValidationErrors {
	errs := ValidationErrors{}
	var failed validator.ValidationErrors
	if !errors.As(validate.Struct(form), &failed) {
		return errs
	}
	t := reflect.TypeOf(form)
	for _, fe := range failed {
		sf, _ := t.FieldByName(fe.StructField())
		errs.Add(fe.Field(), fieldMessage(sf, fe.Tag()))
	}
	return errs
}

func fieldMessage(f reflect.StructField, tag string) string {
	switch tag {
	case "required":
		return f.Tag.Get("label") + " is required"
	case "singleline":
		return f.Tag.Get("label") + " must not contain line breaks or control characters"
	}
	return f.Tag.Get("msg")
}

// parseAmount converts an amount that passed its tags.
func parseAmount(errs ValidationErrors, field, value string) core.Money {
	if _, bad := errs[field]; bad {
		return core.Money{}
	}
	cents, err := core.ParseDecimalToCents(value)
	if err != nil {
		errs.Add(field, "Amount must be greater than 0 with at most 10 digits")
		return core.Money{}
	}
	return core.Money{Cents: cents}
}

func parseID(errs ValidationErrors, field, value, msg string) int64 {
	if _, bad := errs[field]; bad {
		return 0
	}
	id, err := strconv.ParseInt(value, 10, 64)
	if err != nil || id <= 0 {
		errs.Add(field, msg)
		return 0
	}
	return id
}

func field(form url.Values, name string) string {
	return sanitizeInput(form.Get(name))
}

type SignupForm struct {
	Username        string `form:"username" label:"Username" validate:"required,min=3,max=80,singleline" msg:"Username must be 3-80 characters"`
	Email           string `form:"email" label:"Email" validate:"required,email,max=120" msg:"Invalid email address"`
	Password        string `form:"password" label:"Password" validate:"required,min=8" msg:"Password must be at least 8 characters"`
	ConfirmPassword string `form:"confirm_password" validate:"eqfield=Password" msg:"Passwords must match"`
	Currency        string `form:"currency" validate:"currency" msg:"Unsupported currency"`
}

func ParseSignupForm(form url.Values) SignupForm {
	f := SignupForm{
		Username:        field(form, "username"),
		Email:           strings.ToLower(field(form, "email")),
		Password:        form.Get("password"),
		ConfirmPassword: form.Get("confirm_password"),
		Currency:        strings.ToUpper(field(form, "currency")),
	}
	if f.Currency == "" {
		f.Currency = core.DefaultCurrency
	}
	return f
}

func (f SignupForm) Validate() ValidationErrors {
	return check(f).orNil()
}

func (f SignupForm) Input() services.RegisterInput {
	return services.RegisterInput{Username: f.Username, Email: f.Email, Password: f.Password, Currency: f.Currency}
}

type LoginForm struct {
	Username string `form:"username" label:"Username" validate:"required"`
	Password string `form:"password" label:"Password" validate:"required"`
}

func ParseLoginForm(form url.Values) LoginForm {
	return LoginForm{Username: field(form, "username"), Password: form.Get("password")}
}

func (f LoginForm) Validate() ValidationErrors {
	return check(f).orNil()
}

// TransactionForm is the add-transaction form. A recurring transaction needs
// a frequency.
type TransactionForm struct {
	Type        string `form:"type" label:"Type" validate:"required,oneof=income expense" msg:"Type must be income or expense"`
	CategoryID  string `form:"category_id" label:"Category" validate:"required,number" msg:"Invalid category"`
	Amount      string `form:"amount" label:"Amount" validate:"required"`
	Date        string `form:"date" label:"Date" validate:"required,datetime=2006-01-02" msg:"Date must be YYYY-MM-DD"`
	Description string `form:"description" validate:"max=200" msg:"Description must be at most 200 characters"`
	IsRecurring bool   `form:"is_recurring"`
	Frequency   string `form:"recurring_frequency" validate:"required_if=IsRecurring true" msg:"Pick a frequency for a recurring transaction"`
}

func ParseTransactionForm(form url.Values) TransactionForm {
	return TransactionForm{
		Type:        strings.ToLower(field(form, "type")),
		CategoryID:  field(form, "category_id"),
		Amount:      field(form, "amount"),
		Date:        field(form, "date"),
		Description: field(form, "description"),
		IsRecurring: isChecked(form.Get("is_recurring")),
		Frequency:   strings.ToLower(field(form, "recurring_frequency")),
	}
}

func (f TransactionForm) Validate() (services.AddTransactionInput, ValidationErrors) {
	errs := check(f)
	in := services.AddTransactionInput{
		Type:        core.TransactionType(f.Type),
		Description: f.Description,
		Date:        f.Date,
		Frequency:   core.None,
	}
	in.CategoryID = parseID(errs, "category_id", f.CategoryID, "Invalid category")
	in.Amount = parseAmount(errs, "amount", f.Amount)
	if _, bad := errs["recurring_frequency"]; f.IsRecurring && !bad {
		freq, err := core.ParseFrequency(f.Frequency)
		if err != nil || !freq.IsRecurring() {
			errs.Add("recurring_frequency", "Pick a frequency for a recurring transaction")
		} else {
			in.Frequency = freq
		}
	}
	return in, errs.orNil()
}

// CategoryForm names end up in mail subjects, so name and icon stay on one line.
type CategoryForm struct {
	Name  string `form:"name" label:"Name" validate:"required,max=50,singleline" msg:"Name must be 1-50 characters"`
	Type  string `form:"category_type" validate:"oneof=income expense" msg:"Type must be income or expense"`
	Icon  string `form:"icon" label:"Icon" validate:"min=1,max=5,singleline" msg:"Icon must be at most 5 characters"`
	Color string `form:"color" validate:"hexcolor,len=7" msg:"Must be a valid hex color"`
}

func ParseCategoryForm(form url.Values) CategoryForm {
	f := CategoryForm{
		Name:  field(form, "name"),
		Type:  strings.ToLower(field(form, "category_type")),
		Icon:  field(form, "icon"),
		Color: field(form, "color"),
	}
	if f.Icon == "" {
		f.Icon = services.DefaultCategoryIcon
	}
	if f.Color == "" {
		f.Color = services.DefaultCategoryColor
	}
	return f
}

func (f CategoryForm) Validate() (services.CategoryInput, ValidationErrors) {
	in := services.CategoryInput{Name: f.Name, Type: core.TransactionType(f.Type), Icon: f.Icon, Color: f.Color}
	return in, check(f).orNil()
}

type BudgetForm struct {
	CategoryID     string `form:"category_id" label:"Category" validate:"required,number" msg:"Invalid category"`
	Amount         string `form:"amount" label:"Amount" validate:"required"`
	AlertThreshold string `form:"alert_threshold" validate:"omitempty,number" msg:"Threshold must be 1-100"`
}

func ParseBudgetForm(form url.Values) BudgetForm {
	return BudgetForm{
		CategoryID:     field(form, "category_id"),
		Amount:         field(form, "amount"),
		AlertThreshold: field(form, "alert_threshold"),
	}
}

func (f BudgetForm) Validate() (services.BudgetInput, ValidationErrors) {
	errs := check(f)
	in := services.BudgetInput{AlertThreshold: core.DefaultAlertThreshold}
	in.CategoryID = parseID(errs, "category_id", f.CategoryID, "Invalid category")
	in.Amount = parseAmount(errs, "amount", f.Amount)
	if _, bad := errs["alert_threshold"]; f.AlertThreshold != "" && !bad {
		n, err := strconv.Atoi(f.AlertThreshold)
		if err != nil || core.ValidateThreshold(n) != nil {
			errs.Add("alert_threshold", "Threshold must be 1-100")
		} else {
			in.AlertThreshold = n
		}
	}
	return in, errs.orNil()
}

type ProfileForm struct {
	Email    string `form:"email" label:"Email" validate:"required,email,max=120" msg:"Invalid email address"`
	Currency string `form:"currency" validate:"currency" msg:"Unsupported currency"`
}

func ParseProfileForm(form url.Values) ProfileForm {
	return ProfileForm{
		Email:    strings.ToLower(field(form, "email")),
		Currency: strings.ToUpper(field(form, "currency")),
	}
}

func (f ProfileForm) Validate() ValidationErrors {
	return check(f).orNil()
}

type PasswordForm struct {
	CurrentPassword string `form:"current_password" label:"Current password" validate:"required"`
	NewPassword     string `form:"new_password" label:"New password" validate:"required,min=8" msg:"Password must be at least 8 characters"`
	ConfirmPassword string `form:"confirm_password" validate:"eqfield=NewPassword" msg:"Passwords must match"`
}

func ParsePasswordForm(form url.Values) PasswordForm {
	return PasswordForm{
		CurrentPassword: form.Get("current_password"),
		NewPassword:     form.Get("new_password"),
		ConfirmPassword: form.Get("confirm_password"),
	}
}

func (f PasswordForm) Validate() ValidationErrors {
	return check(f).orNil()
}

func isChecked(v string) bool {
	switch strings.ToLower(strings.TrimSpace(v)) {
	case "1", "on", "true", "yes", "y":
		return true
	}
	return false
}
