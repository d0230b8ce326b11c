package handlers

import (
	"fmt"

	"github.com/imamik/k8tenant/internal/accounts"
	"github.com/imamik/k8tenant/internal/dns"
	"github.com/imamik/k8tenant/internal/entity"
	"github.com/imamik/k8tenant/internal/ingress"
	"github.com/imamik/k8tenant/internal/lifecycle"
	"github.com/imamik/k8tenant/internal/registry"
	"github.com/imamik/k8tenant/internal/store"
	"github.com/imamik/k8tenant/internal/ui/prompt"
)

// entitySet bundles the controller of one variant with its stores.
type entitySet struct {
	ctrl  *lifecycle.Controller
	meta  *store.MetadataStore
	creds *store.CredentialStore
}

func (rt *runtime) metadataStore(variant entity.Variant) *store.MetadataStore {
	return store.NewMetadataStore(rt.k, rt.cfg.Namespace, variant, rt.storeOptions())
}

func (rt *runtime) credentialStore(variant entity.Variant) *store.CredentialStore {
	return store.NewCredentialStore(rt.k, rt.cfg.Namespace, variant, rt.storeOptions())
}

// traefik returns the regenerator fed by the DNS metadata store.
func (rt *runtime) traefik() *ingress.Regenerator {
	return ingress.NewRegenerator(rt.k, rt.metadataStore(entity.VariantDNS),
		rt.cfg.Traefik, rt.cfg.ACME, rt.poll(), ingress.WithObserver(rt.observer))
}

func (rt *runtime) strategy(variant entity.Variant) (lifecycle.Strategy, []lifecycle.Downstream, error) {
	switch variant {
	case entity.VariantTenant, entity.VariantAdmin:
		opts := accounts.Options{
			SystemNamespace: rt.cfg.Namespace,
			StateDir:        rt.cfg.StateDir,
			ClusterServer:   rt.cfg.ClusterServer,
			Poll:            rt.poll(),
		}
		if variant == entity.VariantTenant {
			return accounts.NewTenant(rt.k, opts), nil, nil
		}
		return accounts.NewAdmin(rt.k, opts), nil, nil
	case entity.VariantDNS:
		return dns.NewStrategy(rt.k, rt.cfg.Traefik.Namespace, rt.cfg.ACME.Email),
			[]lifecycle.Downstream{rt.traefik()}, nil
	case entity.VariantRegistry:
		authFile := registry.NewAuthFile(rt.cfg.Registry.AuthFile,
			rt.metadataStore(entity.VariantRegistry), rt.credentialStore(entity.VariantRegistry), rt.observer)
		s := registry.NewStrategy(rt.k, registry.Options{
			Namespace: rt.cfg.Registry.Namespace,
			Service:   rt.cfg.Registry.Service,
			Port:      rt.cfg.Registry.Port,
		})
		return s, []lifecycle.Downstream{authFile}, nil
	}
	return nil, nil, fmt.Errorf("%w: unknown variant %q", entity.ErrInvalidName, variant)
}

// entities builds the lifecycle controller for variant. interactive
// enables terminal confirmation of deletes.
func (rt *runtime) entities(variant entity.Variant, interactive bool) (*entitySet, error) {
	strategy, downstreams, err := rt.strategy(variant)
	if err != nil {
		return nil, err
	}
	set := &entitySet{
		meta:  rt.metadataStore(variant),
		creds: rt.credentialStore(variant),
	}
	prompter := newPrompter(interactive)
	set.ctrl = lifecycle.NewController(strategy, set.meta, set.creds, rt.archives,
		lifecycle.WithDownstream(downstreams...),
		lifecycle.WithConfirm(confirmWith(prompter)),
		lifecycle.WithObserver(rt.observer),
		lifecycle.WithMetrics(rt.metrics),
		lifecycle.WithIdentity(rt.identity),
		lifecycle.WithToolVersion(toolVersion),
	)
	return set, nil
}

func confirmWith(p prompt.Prompter) lifecycle.ConfirmFunc {
	return p.Confirm
}
