/*
kinds.go - Document kind registration and lookup

PURPOSE:
  Provides a registry for domain packages to register their document kinds.
  This enables deserialization from storage/JSON back to concrete types
  while maintaining proper encapsulation.

HOW IT WORKS:
  1. Domain packages define their DocumentKind implementations
  2. Domain packages register them on init() or explicit registration
  3. Factory/storage uses the registry to reconstruct kinds

USAGE:
  // In receipts/types.go
  func init() {
      numbering.RegisterKind(KindReceipt)
  }

  // In storage
  kind := numbering.LookupKind("RCP")  // returns receipts.KindReceipt

WHY A REGISTRY:
  - Numbering package stays domain-agnostic
  - Type safety maintained at compile time
  - Clean deserialization from strings
  - Domains own their kinds

SEE ALSO:
  - types.go: DocumentKind interface definition
  - receipts/types.go: Receipt kind implementation
  - invoices/types.go: Invoice kind implementation
*/
package numbering

import (
	"fmt"
	"sync"
)

// =============================================================================
// KIND REGISTRY
// =============================================================================

var (
	kindRegistry = make(map[string]DocumentKind)
	registryMu   sync.RWMutex
)

// RegisterKind adds a document kind to the global registry.
// Call this from domain package init() functions.
func RegisterKind(k DocumentKind) {
	registryMu.Lock()
	defer registryMu.Unlock()
	kindRegistry[k.KindCode()] = k
}

// LookupKind finds a registered document kind by code.
// Returns nil if not found.
func LookupKind(code string) DocumentKind {
	registryMu.RLock()
	defer registryMu.RUnlock()
	return kindRegistry[code]
}

// MustLookupKind finds a registered kind or panics.
// Use in tests or when you're certain the kind exists.
func MustLookupKind(code string) DocumentKind {
	k := LookupKind(code)
	if k == nil {
		panic(fmt.Sprintf("document kind not registered: %s", code))
	}
	return k
}

// ListKinds returns all registered document kinds.
func ListKinds() []DocumentKind {
	registryMu.RLock()
	defer registryMu.RUnlock()
	result := make([]DocumentKind, 0, len(kindRegistry))
	for _, k := range kindRegistry {
		result = append(result, k)
	}
	return result
}

// ListKindsByDomain returns kinds for a specific domain.
func ListKindsByDomain(domain string) []DocumentKind {
	registryMu.RLock()
	defer registryMu.RUnlock()
	var result []DocumentKind
	for _, k := range kindRegistry {
		if k.KindDomain() == domain {
			result = append(result, k)
		}
	}
	return result
}

// =============================================================================
// STRING KIND - For testing and fallback
// =============================================================================

// StringKind is a simple string-based document kind.
// Use only for testing or as a fallback when domain types aren't available.
type StringKind struct {
	Code   string
	Domain string
}

func (k StringKind) KindCode() string   { return k.Code }
func (k StringKind) KindDomain() string { return k.Domain }

// NewStringKind creates a StringKind with "unknown" domain.
// This is a fallback for when we have a code but no registered type.
func NewStringKind(code string) StringKind {
	return StringKind{Code: code, Domain: "unknown"}
}

// GetOrCreateKind looks up a document kind, or creates a StringKind fallback.
// Use this in deserialization when the domain might not be loaded.
func GetOrCreateKind(code string) DocumentKind {
	if k := LookupKind(code); k != nil {
		return k
	}
	return NewStringKind(code)
}
