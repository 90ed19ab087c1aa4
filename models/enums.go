package models

// MeasurementType partitions units into mutually convertible families.
// Cross-type conversion is undefined and always rejected.
type MeasurementType string

const (
	MeasurementTypeWeight      MeasurementType = "weight"
	MeasurementTypeVolume      MeasurementType = "volume"
	MeasurementTypeCount       MeasurementType = "count"
	MeasurementTypeLength      MeasurementType = "length"
	MeasurementTypeTemperature MeasurementType = "temperature"
)

func (t MeasurementType) IsValid() bool {
	switch t {
	case MeasurementTypeWeight, MeasurementTypeVolume, MeasurementTypeCount,
		MeasurementTypeLength, MeasurementTypeTemperature:
		return true
	}
	return false
}

type MovementType string

const (
	MovementTypeIn  MovementType = "in"
	MovementTypeOut MovementType = "out"
)

type AuditAction string

const (
	AuditActionCreate AuditAction = "CREATE"
	AuditActionUpdate AuditAction = "UPDATE"
	AuditActionDelete AuditAction = "DELETE"
	AuditActionLogin  AuditAction = "LOGIN"
	AuditActionLogout AuditAction = "LOGOUT"
	AuditActionRead   AuditAction = "READ"
	AuditActionExport AuditAction = "EXPORT"
	AuditActionImport AuditAction = "IMPORT"
	AuditActionView   AuditAction = "VIEW"
)

func (a AuditAction) IsValid() bool {
	switch a {
	case AuditActionCreate, AuditActionUpdate, AuditActionDelete,
		AuditActionLogin, AuditActionLogout, AuditActionRead,
		AuditActionExport, AuditActionImport, AuditActionView:
		return true
	}
	return false
}

type AuditStatus string

const (
	AuditStatusSuccess AuditStatus = "success"
	AuditStatusFailed  AuditStatus = "failed"
	AuditStatusError   AuditStatus = "error"
)

type OutboxStatus string

const (
	OutboxStatusPending   OutboxStatus = "PENDING"
	OutboxStatusProcessed OutboxStatus = "PROCESSED"
	OutboxStatusFailed    OutboxStatus = "FAILED"
)

type UserRole string

const (
	UserRoleAdmin UserRole = "admin"
	UserRoleStaff UserRole = "staff"
)
