package configuration

import "fmt"

// NoConfigurationFoundError reports that no active configuration row
// exists for the requested code.
type NoConfigurationFoundError struct {
	Code string
}

func (err *NoConfigurationFoundError) Error() string {
	return fmt.Sprintf("no active configuration found for code %q", err.Code)
}

// InvalidConfigurationError reports a structurally broken configuration.
type InvalidConfigurationError struct {
	Reason string
}

func (err *InvalidConfigurationError) Error() string {
	return fmt.Sprintf("invalid configuration: %s", err.Reason)
}

// InvalidOptionError reports an option not declared for its node type.
type InvalidOptionError struct {
	Option string
	Node   string
}

func (err *InvalidOptionError) Error() string {
	return fmt.Sprintf("invalid option %q for %s", err.Option, err.Node)
}

// InvalidConditionError reports an unparseable or unresolvable question
// condition.
type InvalidConditionError struct {
	Condition string
	Reason    string
}

func (err *InvalidConditionError) Error() string {
	return fmt.Sprintf("invalid condition %q: %s", err.Condition, err.Reason)
}

// InvalidQuestiongroupConditionError reports an unparseable or undeclared
// questiongroup condition.
type InvalidQuestiongroupConditionError struct {
	Condition string
	Reason    string
}

func (err *InvalidQuestiongroupConditionError) Error() string {
	return fmt.Sprintf("invalid questiongroup condition %q: %s", err.Condition, err.Reason)
}

// NotInDatabaseError reports a configuration keyword with no matching
// schema entity.
type NotInDatabaseError struct {
	Kind    string
	Keyword string
}

func (err *NotInDatabaseError) Error() string {
	return fmt.Sprintf("%s with keyword %q is not in the database", err.Kind, err.Keyword)
}

// TemplateNotFoundError reports a node referencing an unregistered
// rendering template.
type TemplateNotFoundError struct {
	Template string
	Node     string
}

func (err *TemplateNotFoundError) Error() string {
	return fmt.Sprintf("template %q for %s not found", err.Template, err.Node)
}
