package registry

import (
	"context"
	"crypto/tls"
	"errors"
	"fmt"
	"net/http"

	"github.com/google/go-containerregistry/pkg/authn"
	"github.com/google/go-containerregistry/pkg/name"
	"github.com/google/go-containerregistry/pkg/v1/remote"
	"github.com/google/go-containerregistry/pkg/v1/remote/transport"

	"github.com/imamik/k8tenant/internal/entity"
)

// ErrRejected marks credentials the registry refused.
var ErrRejected = errors.New("credentials rejected")

// catalog is replaced in tests.
var catalog = remote.Catalog

// probeCatalog lists the registry catalog with basic auth.
func probeCatalog(ctx context.Context, info entity.RegistryInfo, password string) error {
	var nameOpts []name.Option
	opts := []remote.Option{
		remote.WithAuth(&authn.Basic{Username: info.Username, Password: password}),
	}
	if info.InsecureSkipVerify {
		nameOpts = append(nameOpts, name.Insecure)
		tr := http.DefaultTransport.(*http.Transport).Clone()
		tr.TLSClientConfig = &tls.Config{InsecureSkipVerify: true} //nolint:gosec // opted in per registry
		opts = append(opts, remote.WithTransport(tr))
	}

	reg, err := name.NewRegistry(info.Domain, nameOpts...)
	if err != nil {
		return fmt.Errorf("%w: registry domain %q: %v", entity.ErrInvalidName, info.Domain, err)
	}

	if _, err := catalog(ctx, reg, opts...); err != nil {
		var terr *transport.Error
		if errors.As(err, &terr) && (terr.StatusCode == http.StatusUnauthorized || terr.StatusCode == http.StatusForbidden) {
			return fmt.Errorf("%w: %s returned %d", ErrRejected, info.Domain, terr.StatusCode)
		}
		return fmt.Errorf("failed to list catalog of %s: %w", info.Domain, err)
	}
	return nil
}
