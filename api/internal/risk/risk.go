// Package risk turns a DocumentSignal into verification and extraction reports.
package risk

import (
	"encoding/json"
	"sort"

	"trust-engine/api/internal/ocr"
	"trust-engine/api/internal/pattern"
)

// LowConfidenceThreshold is the aggregate OCR confidence under which a result is flagged.
const LowConfidenceThreshold = 0.7

// RiskFlag is a non-blocking diagnostic tag.
type RiskFlag string

const (
	FlagLowOCRConfidence    RiskFlag = "low_ocr_confidence"
	FlagDocumentTermsAbsent RiskFlag = "document_terms_absent"
	FlagSafetyCheckFailed   RiskFlag = "safety_check_failed"
	FlagNoAmountDetected    RiskFlag = "no_amount_detected"
)

// Flags is a set of risk flags. It marshals as a sorted JSON array.
type Flags map[RiskFlag]struct{}

func NewFlags(fs ...RiskFlag) Flags {
	out := Flags{}
	for _, f := range fs {
		out.Add(f)
	}
	return out
}

func (f Flags) Add(flag RiskFlag) { f[flag] = struct{}{} }

func (f Flags) Has(flag RiskFlag) bool {
	_, ok := f[flag]
	return ok
}

// Sorted returns the flags in lexical order.
func (f Flags) Sorted() []RiskFlag {
	out := make([]RiskFlag, 0, len(f))
	for k := range f {
		out = append(out, k)
	}
	sort.Slice(out, func(i, j int) bool { return out[i] < out[j] })
	return out
}

func (f Flags) MarshalJSON() ([]byte, error) {
	return json.Marshal(f.Sorted())
}

func (f *Flags) UnmarshalJSON(b []byte) error {
	var arr []RiskFlag
	if err := json.Unmarshal(b, &arr); err != nil {
		return err
	}
	*f = NewFlags(arr...)
	return nil
}

type IdentityVerificationResult struct {
	IsValid              bool     `json:"is_valid"`
	ExtractedText        string   `json:"extracted_text"`
	Confidence           float64  `json:"confidence"`
	DetectedLabels       []string `json:"detected_labels"`
	SafetyPassed         bool     `json:"safety_passed"`
	PersonalInfoDetected bool     `json:"personal_info_detected"`
	DocumentType         string   `json:"document_type,omitempty"`
	RiskFlags            Flags    `json:"risk_flags"`
}

// FinancialDocumentResult is an extraction report; it carries no validity verdict.
type FinancialDocumentResult struct {
	ExtractedText    string   `json:"extracted_text"`
	Confidence       float64  `json:"confidence"`
	DetectedAmounts  []string `json:"detected_amounts"`
	BankReference    string   `json:"bank_reference,omitempty"`
	TransactionDate  string   `json:"transaction_date,omitempty"`
	LooksLikeReceipt bool     `json:"looks_like_receipt"`
	RiskFlags        Flags    `json:"risk_flags"`
}

// ScoreIdentity derives the identity verdict from one signal.
//
// Validity is an OR of document terms and personal info, since OCR recall is
// imperfect. Flags accumulate independently of validity.
func ScoreIdentity(sig ocr.DocumentSignal) IdentityVerificationResult {
	labels := sig.LabelDescriptions()

	hasTerms := pattern.HasDocumentTerms(sig.RawText, labels)
	personal := pattern.HasPersonalInfo(sig.RawText)
	safe := SafetyPassed(sig.Safety)

	flags := Flags{}
	if sig.AggregateConfidence < LowConfidenceThreshold {
		flags.Add(FlagLowOCRConfidence)
	}
	if !hasTerms && !personal {
		flags.Add(FlagDocumentTermsAbsent)
	}
	if !safe {
		flags.Add(FlagSafetyCheckFailed)
	}

	return IdentityVerificationResult{
		IsValid:              hasTerms || personal,
		ExtractedText:        sig.RawText,
		Confidence:           sig.AggregateConfidence,
		DetectedLabels:       labels,
		SafetyPassed:         safe,
		PersonalInfoDetected: personal,
		DocumentType:         pattern.DocumentType(sig.RawText, labels),
		RiskFlags:            flags,
	}
}

// ScoreFinancialDocument reports what could be read from a receipt or transfer proof.
func ScoreFinancialDocument(sig ocr.DocumentSignal) FinancialDocumentResult {
	amounts := pattern.ExtractAmounts(sig.RawText)

	flags := Flags{}
	if sig.AggregateConfidence < LowConfidenceThreshold {
		flags.Add(FlagLowOCRConfidence)
	}
	if len(amounts) == 0 {
		flags.Add(FlagNoAmountDetected)
	}

	return FinancialDocumentResult{
		ExtractedText:    sig.RawText,
		Confidence:       sig.AggregateConfidence,
		DetectedAmounts:  amounts,
		BankReference:    pattern.ExtractBankReference(sig.RawText),
		TransactionDate:  pattern.ExtractDate(sig.RawText),
		LooksLikeReceipt: pattern.LooksLikeReceipt(sig.RawText),
		RiskFlags:        flags,
	}
}

// SafetyPassed fails open on missing data: no safety block means passed.
// Otherwise adult, violence and racy must all be VERY_UNLIKELY.
func SafetyPassed(s *ocr.SafeSearch) bool {
	if s == nil {
		return true
	}
	return s.Adult == ocr.LikelihoodVeryUnlikely &&
		s.Violence == ocr.LikelihoodVeryUnlikely &&
		s.Racy == ocr.LikelihoodVeryUnlikely
}
