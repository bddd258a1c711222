package param

import (
	"crypto/sha256"
	"encoding/hex"
	"fmt"
)

// DomainTables is the domain prefix for table fingerprints. The
// version suffix enables future algorithm migration.
const DomainTables = "vib3/tables/v1"

// hashWithDomain computes SHA-256 with domain separation.
// Format: SHA256(domain + 0x00 + data). The null separator prevents
// domain/data boundary ambiguity.
func hashWithDomain(domain string, data []byte) string {
	h := sha256.New()
	h.Write([]byte(domain))
	h.Write([]byte{0x00})
	h.Write(data)
	return hex.EncodeToString(h.Sum(nil))
}

// TableHash fingerprints a compiled table set. Given the same section
// configs and cascade rules the hash is stable across runs and hosts,
// so traces and presets can record which tables produced them.
//
// Custom curves are not part of the fingerprint: only the rule's kind
// and intensity hash. Two tables that differ solely in host-registered
// curve bodies produce the same hash.
func TableHash(sections []SectionConfig, rules []CascadeRule) (string, error) {
	doc := map[string]any{
		"version":  TablesVersion,
		"sections": sections,
		"rules":    rules,
	}
	canonical, err := MarshalCanonical(doc)
	if err != nil {
		return "", fmt.Errorf("TableHash: failed to marshal: %w", err)
	}
	return hashWithDomain(DomainTables, canonical), nil
}
