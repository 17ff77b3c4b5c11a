package shop

import (
	"context"
	"fmt"
	"strings"

	"bot-loja/internal/store"

	"github.com/google/uuid"
)

// CredentialIssuer produces the opaque credential payload delivered with an
// order. Injected so the storefront does not care where credentials come from.
type CredentialIssuer interface {
	Issue(ctx context.Context, product *store.Product, userID string) (string, error)
}

// SerialIssuer generates a per-order access serial. Real catalogs plug in an
// issuer backed by their own credential inventory.
type SerialIssuer struct{}

// Issue returns a fresh serial bound to the product.
func (SerialIssuer) Issue(_ context.Context, product *store.Product, _ string) (string, error) {
	serial := strings.ToUpper(strings.ReplaceAll(uuid.NewString(), "-", "")[:16])
	return fmt.Sprintf("acesso: %s\nserial: %s", product.Name, serial), nil
}
