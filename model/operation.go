// model/operation.go
package model

// Operation is a global atomic action code (read, approve, ...), grouped by
// category. RequiresRecord operations only make sense against a concrete
// record; RequiresOwnership operations additionally imply an owner check.
type Operation struct {
	Code              string `json:"code"`
	Category          string `json:"category"`
	RequiresRecord    bool   `json:"requires_record"`
	RequiresOwnership bool   `json:"requires_ownership"`
}

// DefaultOperations is the built-in operation catalog. Operations outside the
// catalog are legal rule targets; the catalog only adds structural checks for
// the codes it knows.
func DefaultOperations() []Operation {
	return []Operation{
		{Code: "read", Category: "data"},
		{Code: "list", Category: "data"},
		{Code: "create", Category: "data"},
		{Code: "update", Category: "data", RequiresRecord: true},
		{Code: "delete", Category: "data", RequiresRecord: true},
		{Code: "approve", Category: "workflow", RequiresRecord: true},
		{Code: "assign", Category: "workflow", RequiresRecord: true},
		{Code: "transfer", Category: "workflow", RequiresRecord: true, RequiresOwnership: true},
		{Code: "export", Category: "bulk"},
	}
}
