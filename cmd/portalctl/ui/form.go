package ui

import (
	"errors"
	"fmt"
	"net/mail"
	"strings"

	"github.com/charmbracelet/huh"
)

// AdminInput is what create-admin needs to seed an account
type AdminInput struct {
	Name     string
	Email    string
	Password string
}

// Missing reports whether any field still has to be asked for
func (in AdminInput) Missing() bool {
	return strings.TrimSpace(in.Name) == "" || strings.TrimSpace(in.Email) == "" || in.Password == ""
}

func ValidateName(s string) error {
	if strings.TrimSpace(s) == "" {
		return errors.New("name is required")
	}
	return nil
}

func ValidateEmail(s string) error {
	addr, err := mail.ParseAddress(strings.TrimSpace(s))
	if err != nil || addr.Address != strings.TrimSpace(s) {
		return errors.New("enter a plain email address like admin@example.com")
	}
	return nil
}

func ValidatePassword(s string) error {
	if len(s) < 8 {
		return errors.New("admin passwords must be at least 8 characters")
	}
	return nil
}

// Validate checks all fields, as the form would
func (in AdminInput) Validate() error {
	if err := ValidateName(in.Name); err != nil {
		return err
	}
	if err := ValidateEmail(in.Email); err != nil {
		return err
	}
	return ValidatePassword(in.Password)
}

// RunAdminForm prompts for the fields not already set in in.
func RunAdminForm(in AdminInput) (AdminInput, error) {
	var fields []huh.Field

	if strings.TrimSpace(in.Name) == "" {
		fields = append(fields, huh.NewInput().
			Title("Name").
			Description("Shown to citizens on status emails").
			Placeholder("Ward Officer").
			Value(&in.Name).
			Validate(ValidateName))
	}
	if strings.TrimSpace(in.Email) == "" {
		fields = append(fields, huh.NewInput().
			Title("Email").
			Placeholder("admin@example.com").
			Value(&in.Email).
			Validate(ValidateEmail))
	}
	if in.Password == "" {
		fields = append(fields, huh.NewInput().
			Title("Password").
			EchoMode(huh.EchoModePassword).
			Value(&in.Password).
			Validate(ValidatePassword))
	}

	if len(fields) == 0 {
		return in, nil
	}

	var confirm bool
	fields = append(fields, huh.NewConfirm().
		Title("Create this admin account?").
		Affirmative("Create").
		Negative("Cancel").
		Value(&confirm))

	if err := huh.NewForm(huh.NewGroup(fields...)).Run(); err != nil {
		return in, err
	}
	if !confirm {
		return in, huh.ErrUserAborted
	}
	return in, nil
}

func PrintTitle(s string) {
	fmt.Println(titleStyle.Render(s))
}

func PrintSuccess(s string) {
	fmt.Println(successStyle.Render("✓ " + s))
}

func PrintDetail(label, value string) {
	fmt.Println(subtleStyle.Render(fmt.Sprintf("  %-8s %s", label+":", value)))
}

func PrintError(s string) {
	fmt.Println(errorStyle.Render("✗ " + s))
}
