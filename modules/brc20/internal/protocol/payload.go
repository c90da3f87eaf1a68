package protocol

import (
	"bytes"
	"encoding/json"
	"strconv"
	"strings"
	"unicode/utf8"

	"github.com/btcsuite/btcd/txscript"
	"github.com/cockroachdb/errors"
	"github.com/universal-brc20/indexer/core/types"
)

const (
	// ProtocolTag is the value of the "p" field that marks a candidate payload.
	ProtocolTag = "brc-20"

	// DefaultPayloadMaxBytes is the decoded payload size limit. Payloads at the
	// limit are accepted, one byte over is rejected.
	DefaultPayloadMaxBytes = 520

	// MaxOpsPerTransaction caps the number of operations a single transaction
	// can carry across all of its OP_RETURN outputs.
	MaxOpsPerTransaction = 32
)

// Payload is a single decoded operation candidate from an OP_RETURN output.
// A transaction may carry several payloads; SubIndex preserves their order.
type Payload struct {
	SubIndex    int32
	OutputIndex uint32

	OpTag        string
	Tick         string
	OriginalTick string

	// raw numeric fields, validated by the operation processors
	AmountRaw  string
	AmountsRaw []string
	MaxRaw     string
	LimRaw     string
	DecRaw     string

	Raw []byte

	// structural rejection, set during decoding
	Invalid       ErrorCode
	InvalidReason string
}

// IsStructurallyInvalid reports whether the payload was rejected during decoding.
func (p *Payload) IsStructurallyInvalid() bool {
	return p.Invalid != ""
}

// ExtractPayloads scans all outputs of a transaction in output order and
// decodes every candidate payload. Non-candidate OP_RETURN data
// is skipped silently. Structurally invalid candidates are returned with
// their rejection code so they can be recorded.
func ExtractPayloads(tx *types.Transaction, payloadMaxBytes int) []*Payload {
	if payloadMaxBytes <= 0 {
		payloadMaxBytes = DefaultPayloadMaxBytes
	}

	payloads := make([]*Payload, 0)
	subIndex := int32(0)
	emit := func(p *Payload) {
		p.SubIndex = subIndex
		subIndex++
		payloads = append(payloads, p)
	}

	for outputIndex, txOut := range tx.TxOut {
		if !txOut.IsOpReturn() {
			continue
		}
		data := opReturnData(txOut.PkScript)
		if len(data) == 0 {
			continue
		}

		// candidate sniff: JSON object or array
		if data[0] != '{' && data[0] != '[' {
			continue
		}
		if !utf8.Valid(data) {
			emit(&Payload{
				OutputIndex:   uint32(outputIndex),
				Raw:           data,
				Invalid:       CodeUnsupportedEncoding,
				InvalidReason: "payload is not valid UTF-8",
			})
			continue
		}
		if len(data) > payloadMaxBytes {
			emit(&Payload{
				OutputIndex:   uint32(outputIndex),
				Raw:           data,
				Invalid:       CodePayloadTooLarge,
				InvalidReason: "payload exceeds " + strconv.Itoa(payloadMaxBytes) + " bytes",
			})
			continue
		}

		value, err := decodeStrictJSON(data)
		if err != nil {
			emit(&Payload{
				OutputIndex:   uint32(outputIndex),
				Raw:           data,
				Invalid:       CodeMalformedJSON,
				InvalidReason: err.Error(),
			})
			continue
		}

		elements, ok := asElementList(value)
		if !ok {
			emit(&Payload{
				OutputIndex:   uint32(outputIndex),
				Raw:           data,
				Invalid:       CodeMalformedJSON,
				InvalidReason: "payload is not an object or an array of objects",
			})
			continue
		}

		for _, element := range elements {
			payload, isCandidate := decodeElement(element, uint32(outputIndex))
			if !isCandidate {
				continue
			}
			if len(payloads) >= MaxOpsPerTransaction {
				return payloads
			}
			emit(payload)
		}
	}
	return payloads
}

// opReturnData returns the concatenated data pushes of an OP_RETURN script.
func opReturnData(pkScript []byte) []byte {
	pushes, err := txscript.PushedData(pkScript)
	if err != nil {
		return nil
	}
	return bytes.Join(pushes, nil)
}

// asElementList unwraps the decoded payload into its operation elements.
func asElementList(value any) ([]map[string]any, bool) {
	switch v := value.(type) {
	case map[string]any:
		return []map[string]any{v}, true
	case []any:
		elements := make([]map[string]any, 0, len(v))
		for _, item := range v {
			object, ok := item.(map[string]any)
			if !ok {
				return nil, false
			}
			elements = append(elements, object)
		}
		return elements, true
	default:
		return nil, false
	}
}

// decodeElement decodes one operation object. Returns isCandidate=false when
// the element does not belong to this protocol.
func decodeElement(element map[string]any, outputIndex uint32) (*Payload, bool) {
	protocol, ok := element["p"].(string)
	if !ok || protocol != ProtocolTag {
		return nil, false
	}

	raw, err := json.Marshal(element)
	if err != nil {
		raw = nil
	}
	payload := &Payload{
		OutputIndex: outputIndex,
		Raw:         raw,
	}

	opTag, ok := stringField(element, "op")
	if !ok || opTag == "" {
		payload.Invalid = CodeMissingField
		payload.InvalidReason = `missing "op" field`
		return payload, true
	}
	payload.OpTag = strings.ToLower(opTag)

	rawTick, ok := stringField(element, "tick")
	if !ok {
		payload.Invalid = CodeMissingField
		payload.InvalidReason = `missing "tick" field`
		return payload, true
	}
	tick, originalTick, err := NormalizeTicker(rawTick)
	if err != nil {
		payload.Invalid = CodeInvalidTicker
		payload.InvalidReason = err.Error()
		return payload, true
	}
	payload.Tick = tick
	payload.OriginalTick = originalTick

	if err := decodeAmountFields(element, payload); err != nil {
		return payload, true
	}
	return payload, true
}

// decodeAmountFields extracts the raw numeric fields. Deploy supports both the
// long ("max"/"lim") and the short ("m"/"l") field pair; mixing them is
// rejected as malformed.
func decodeAmountFields(element map[string]any, payload *Payload) error {
	maxLong, hasMaxLong := stringField(element, "max")
	maxShort, hasMaxShort := stringField(element, "m")
	limLong, hasLimLong := stringField(element, "lim")
	limShort, hasLimShort := stringField(element, "l")

	longForm := hasMaxLong || hasLimLong
	shortForm := hasMaxShort || hasLimShort
	if longForm && shortForm {
		payload.Invalid = CodeMalformedJSON
		payload.InvalidReason = "mixed long and short deploy field formats"
		return errors.Wrap(ErrInvalidAmount, payload.InvalidReason)
	}
	if hasMaxLong {
		payload.MaxRaw = maxLong
	}
	if hasMaxShort {
		payload.MaxRaw = maxShort
	}
	if hasLimLong {
		payload.LimRaw = limLong
	}
	if hasLimShort {
		payload.LimRaw = limShort
	}
	if dec, ok := stringField(element, "dec"); ok {
		payload.DecRaw = dec
	}

	switch amt := element["amt"].(type) {
	case string:
		payload.AmountRaw = amt
	case []any:
		amounts := make([]string, 0, len(amt))
		for _, item := range amt {
			s, ok := item.(string)
			if !ok {
				payload.Invalid = CodeMalformedJSON
				payload.InvalidReason = `"amt" list must contain only strings`
				return errors.Wrap(ErrInvalidAmount, payload.InvalidReason)
			}
			amounts = append(amounts, s)
		}
		payload.AmountsRaw = amounts
	case nil:
	default:
		payload.Invalid = CodeMalformedJSON
		payload.InvalidReason = `"amt" must be a string or a list of strings`
		return errors.Wrap(ErrInvalidAmount, payload.InvalidReason)
	}
	return nil
}

func stringField(element map[string]any, key string) (string, bool) {
	value, ok := element[key]
	if !ok {
		return "", false
	}
	s, ok := value.(string)
	return s, ok
}

// decodeStrictJSON decodes JSON rejecting duplicate object keys at any depth.
// encoding/json silently keeps the last duplicate, which would make two
// indexers disagree on the decoded operation.
func decodeStrictJSON(data []byte) (any, error) {
	decoder := json.NewDecoder(bytes.NewReader(data))
	decoder.UseNumber()
	value, err := decodeStrictValue(decoder)
	if err != nil {
		return nil, errors.WithStack(err)
	}
	// trailing content after the top-level value
	if decoder.More() {
		return nil, errors.New("unexpected trailing data")
	}
	return value, nil
}

func decodeStrictValue(decoder *json.Decoder) (any, error) {
	token, err := decoder.Token()
	if err != nil {
		return nil, errors.WithStack(err)
	}
	return decodeStrictToken(decoder, token)
}

func decodeStrictToken(decoder *json.Decoder, token json.Token) (any, error) {
	switch t := token.(type) {
	case json.Delim:
		switch t {
		case '{':
			object := make(map[string]any)
			for decoder.More() {
				keyToken, err := decoder.Token()
				if err != nil {
					return nil, errors.WithStack(err)
				}
				key, ok := keyToken.(string)
				if !ok {
					return nil, errors.Errorf("unexpected object key token %v", keyToken)
				}
				if _, exists := object[key]; exists {
					return nil, errors.Errorf("duplicate object key %q", key)
				}
				value, err := decodeStrictValue(decoder)
				if err != nil {
					return nil, errors.WithStack(err)
				}
				object[key] = value
			}
			// consume '}'
			if _, err := decoder.Token(); err != nil {
				return nil, errors.WithStack(err)
			}
			return object, nil
		case '[':
			list := make([]any, 0)
			for decoder.More() {
				value, err := decodeStrictValue(decoder)
				if err != nil {
					return nil, errors.WithStack(err)
				}
				list = append(list, value)
			}
			// consume ']'
			if _, err := decoder.Token(); err != nil {
				return nil, errors.WithStack(err)
			}
			return list, nil
		default:
			return nil, errors.Errorf("unexpected delimiter %v", t)
		}
	default:
		return token, nil
	}
}
