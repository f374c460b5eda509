// Package pattern holds the deterministic text rules used to read document signals.
//
// Every function is total and side-effect free: they run inline in the decision
// path and must never be the reason a response degrades. Keyword sets cover
// English and Indonesian, the marketplace's two document languages.
package pattern

import (
	"regexp"
	"strings"
)

var (
	documentTermRe = regexp.MustCompile(`(?i)\b(identity|identitas|identification|license|licence|passport|paspor|id|ktp|nik|sim|kartu tanda penduduk|surat izin mengemudi)\b`)

	cardNumberRe  = regexp.MustCompile(`\d{16}`)
	isoDateRe     = regexp.MustCompile(`\b\d{4}-\d{2}-\d{2}\b`)
	personalKwdRe = regexp.MustCompile(`(?i)\b(birth|born|date of birth|lahir|tempat/tgl lahir|tgl lahir|address|alamat)\b`)

	amountRe = regexp.MustCompile(`(?i)\b(?:rp|idr)\.?\s?\d+(?:[.,]\d+)*|\b\d{1,3}(?:\.\d{3})+(?:,\d{2})?\b`)

	bankRe = regexp.MustCompile(`(?i)\b(BCA|BNI|BRI|BSI|BTN|Mandiri|CIMB(?: Niaga)?|Permata|Danamon|OCBC|Jenius|SeaBank|GoPay|OVO|DANA|ShopeePay)\b`)

	dateRe = regexp.MustCompile(`(?i)\b\d{1,2}[/-]\d{1,2}[/-]\d{2,4}\b|\b\d{4}-\d{2}-\d{2}\b|\b\d{1,2}\s+(?:jan|feb|mar|apr|mei|may|jun|jul|agu|aug|sep|okt|oct|nov|des|dec)[a-z]*\s+\d{4}\b`)

	docTypes = []struct {
		name string
		re   *regexp.Regexp
	}{
		{"ktp", regexp.MustCompile(`(?i)\b(ktp|kartu tanda penduduk|nik)\b`)},
		{"passport", regexp.MustCompile(`(?i)\b(passport|paspor)\b`)},
		{"driver_license", regexp.MustCompile(`(?i)\b(driver'?s? licen[cs]e|driving licen[cs]e|sim|surat izin mengemudi)\b`)},
		{"identity_card", regexp.MustCompile(`(?i)\b(identity card|id card|identitas|identity document)\b`)},
	}

	receiptRe = regexp.MustCompile(`(?i)\b(receipt|struk|bukti|transfer|transaksi|transaction|pembayaran|payment|invoice|faktur|total|berhasil|successful|paid|lunas)\b`)
)

// HasDocumentTerms reports whether an identity-document keyword appears in the text or in any label.
func HasDocumentTerms(text string, labels []string) bool {
	if documentTermRe.MatchString(text) {
		return true
	}
	for _, l := range labels {
		if documentTermRe.MatchString(l) {
			return true
		}
	}
	return false
}

// DocumentType names the most specific document kind mentioned, "" when unknown.
// Text wins over labels.
func DocumentType(text string, labels []string) string {
	for _, dt := range docTypes {
		if dt.re.MatchString(text) {
			return dt.name
		}
	}
	for _, dt := range docTypes {
		for _, l := range labels {
			if dt.re.MatchString(l) {
				return dt.name
			}
		}
	}
	return ""
}

// HasPersonalInfo flags the presence of identifying patterns. It does not validate them.
func HasPersonalInfo(text string) bool {
	return cardNumberRe.MatchString(text) ||
		isoDateRe.MatchString(text) ||
		personalKwdRe.MatchString(text)
}

// ExtractAmounts returns every currency-prefixed or thousands-grouped amount, in order.
func ExtractAmounts(text string) []string {
	found := amountRe.FindAllString(text, -1)
	out := make([]string, 0, len(found))
	for _, s := range found {
		out = append(out, strings.TrimSpace(s))
	}
	return out
}

// ExtractBankReference returns the first bank or wallet name, "" if none.
func ExtractBankReference(text string) string {
	return bankRe.FindString(text)
}

// ExtractDate returns the first date-looking substring, "" if none.
func ExtractDate(text string) string {
	return dateRe.FindString(text)
}

func LooksLikeReceipt(text string) bool {
	return receiptRe.MatchString(text)
}
