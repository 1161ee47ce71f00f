package audithook

// Action constants for audit events.
const (
	// Permission actions
	ActionPermissionGranted = "permission.granted"

	// Transaction actions
	ActionTransactionInitiated = "transaction.initiated"
	ActionTransactionCompleted = "transaction.completed"
	ActionTransactionRefunded  = "transaction.refunded"

	// Administrative actions
	ActionFeesWithdrawn    = "fees.withdrawn"
	ActionTokenAdded       = "token.added"
	ActionTokenRemoved     = "token.removed"
	ActionSpreadFeeUpdated = "spread_fee.updated"
	ActionBridgePaused     = "bridge.paused"
	ActionBridgeUnpaused   = "bridge.unpaused"

	// Failures
	ActionOperationRejected = "operation.rejected"
	ActionTransferFailed    = "transfer.failed"
)

// Resource constants for audit events.
const (
	ResourcePermission  = "permission"
	ResourceTransaction = "transaction"
	ResourceFees        = "fees"
	ResourceToken       = "token"
	ResourceBridge      = "bridge"
)

// Category constants for audit events.
const (
	CategoryAccess     = "access"
	CategoryEscrow     = "escrow"
	CategorySettlement = "settlement"
	CategoryTreasury   = "treasury"
	CategoryAdmin      = "admin"
)

// Severity levels for audit events.
const (
	SeverityInfo     = "info"
	SeverityWarning  = "warning"
	SeverityError    = "error"
	SeverityCritical = "critical"
)

// Outcome values for audit events.
const (
	OutcomeSuccess = "success"
	OutcomeFailure = "failure"
)
