package protocol

// ErrorCode identifies why an operation was rejected. Rejected operations are
// still recorded in the operation log with their code.
type ErrorCode string

const (
	// structural codes: the payload never reached a processor
	CodeMalformedJSON       ErrorCode = "MALFORMED_JSON"
	CodeUnsupportedEncoding ErrorCode = "UNSUPPORTED_ENCODING"
	CodePayloadTooLarge     ErrorCode = "PAYLOAD_TOO_LARGE"
	CodeMissingField        ErrorCode = "MISSING_FIELD"
	CodeUnknownOp           ErrorCode = "UNKNOWN_OP"

	// protocol codes: the payload was well-formed but violates token rules
	CodeInvalidTicker         ErrorCode = "INVALID_TICKER"
	CodeInvalidAmount         ErrorCode = "INVALID_AMOUNT"
	CodeTickerAlreadyDeployed ErrorCode = "TICKER_ALREADY_DEPLOYED"
	CodeTickerNotDeployed     ErrorCode = "TICKER_NOT_DEPLOYED"
	CodeMintExceedsLimit      ErrorCode = "MINT_EXCEEDS_LIMIT"
	CodeMintExceedsSupply     ErrorCode = "MINT_EXCEEDS_SUPPLY"
	CodeInsufficientBalance   ErrorCode = "INSUFFICIENT_BALANCE"
	CodeUnresolvableSender    ErrorCode = "UNRESOLVABLE_SENDER"
	CodeNoStandardOutput      ErrorCode = "NO_STANDARD_OUTPUT"

	// cross-namespace codes
	CodeLegacyTokenExists     ErrorCode = "LEGACY_TOKEN_EXISTS"
	CodeNoReturnEventMismatch ErrorCode = "NO_RETURN_EVENT_MISMATCH"
)

func (c ErrorCode) String() string {
	return string(c)
}
