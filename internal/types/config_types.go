package types

// QueryTemplate is a named, parameterized catalog query.
// WhereConditions may reference {placeholder} substitution points.
type QueryTemplate struct {
	Fields          []string `mapstructure:"fields" json:"fields" validate:"required,min=1"`
	FromTable       string   `mapstructure:"from_table" json:"from_table" validate:"required"`
	WhereConditions []string `mapstructure:"where_conditions" json:"where_conditions"`
	OrderBy         string   `mapstructure:"order_by" json:"order_by,omitempty"`
	Limit           int      `mapstructure:"limit" json:"limit,omitempty"`
}

// ValidationType is the declared kind of a check descriptor.
type ValidationType string

const (
	ValidationPresence ValidationType = "presence"
	ValidationCharges  ValidationType = "charges"
	ValidationStatus   ValidationType = "status"
	ValidationCustom   ValidationType = "custom"
)

// CheckDescriptor is a configuration-declared check.
// AllowZero is a pointer so an omitted value can default to true.
type CheckDescriptor struct {
	ID             string         `mapstructure:"id" json:"id" validate:"required"`
	ValidationType ValidationType `mapstructure:"validation_type" json:"validation_type" validate:"required"`
	Logic          string         `mapstructure:"logic" json:"logic,omitempty"`
	AllowZero      *bool          `mapstructure:"allow_zero" json:"allow_zero,omitempty"`
	Field          string         `mapstructure:"field" json:"field,omitempty"`
	ExpectedValue  any            `mapstructure:"expected_value" json:"expected_value,omitempty"`
}

// ReasonCheckSet binds a check descriptor list to one order reason.
type ReasonCheckSet struct {
	Reason string            `mapstructure:"reason" json:"reason" validate:"required"`
	Checks []CheckDescriptor `mapstructure:"checks" json:"checks" validate:"dive"`
}
