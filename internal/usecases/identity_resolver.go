package usecases

import (
	"context"
	"crypto/sha256"
	"encoding/hex"
	"fmt"
	"strings"

	"revenda_bot/internal/entities"
	"revenda_bot/internal/interfaces"
)

// SettingAdminInstance is the global setting holding the admin's instance name.
const SettingAdminInstance = "admin_instance_name"

// DefaultSellerPrefix marks instance names created for sellers.
const DefaultSellerPrefix = "seller_"

// Resolution reasons.
const (
	ReasonNotFound  = "not_found"
	ReasonAmbiguous = "ambiguous_partial_match"
)

// Resolution is the result of mapping a provider instance to a tenant.
type Resolution struct {
	Tenant   *entities.Tenant
	Found    bool
	Searched string
	Reason   string
	// MatchedBy names the step that found the tenant.
	MatchedBy string
}

// IdentityResolver maps raw provider instance identifiers to tenants.
type IdentityResolver struct {
	tenants      interfaces.TenantStore
	users        interfaces.UserStore
	settings     interfaces.SettingsStore
	sellerPrefix string
}

func NewIdentityResolver(tenants interfaces.TenantStore, users interfaces.UserStore, settings interfaces.SettingsStore, sellerPrefix string) *IdentityResolver {
	if sellerPrefix == "" {
		sellerPrefix = DefaultSellerPrefix
	}
	return &IdentityResolver{
		tenants:      tenants,
		users:        users,
		settings:     settings,
		sellerPrefix: strings.ToLower(sellerPrefix),
	}
}

// DerivedInstanceName is the deterministic instance name generated for a seller.
func DerivedInstanceName(prefix, tenantID string) string {
	sum := sha256.Sum256([]byte(tenantID))
	return prefix + hex.EncodeToString(sum[:])[:12]
}

// HasSellerPrefix reports whether an identifier carries the seller prefix.
func (r *IdentityResolver) HasSellerPrefix(instance string) bool {
	return strings.HasPrefix(strings.ToLower(strings.TrimSpace(instance)), r.sellerPrefix)
}

// Resolve finds the tenant owning instance. Not found and ambiguous partial
// matches return Found=false with a reason and no error.
func (r *IdentityResolver) Resolve(ctx context.Context, instance string) (Resolution, error) {
	raw := strings.TrimSpace(instance)
	res := Resolution{Searched: raw}
	if raw == "" {
		res.Reason = ReasonNotFound
		return res, nil
	}
	sellerPrefixed := r.HasSellerPrefix(raw)

	t, err := r.tenants.FindByInstanceName(ctx, raw)
	if err != nil {
		return res, fmt.Errorf("find tenant by instance: %w", err)
	}
	if t != nil && !(sellerPrefixed && t.IsAdmin()) {
		return found(res, t, "instance_name"), nil
	}

	if !sellerPrefixed {
		admin, err := r.resolveAdmin(ctx, raw)
		if err != nil {
			return res, err
		}
		if admin {
			return found(res, &entities.Tenant{
				ID:              string(entities.TenantAdmin),
				Kind:            entities.TenantAdmin,
				Name:            "admin",
				InstanceName:    raw,
				ConnectionState: entities.ConnectionOpen,
				PlanStatus:      entities.PlanActive,
			}, "admin"), nil
		}
	}

	sellers, err := r.tenants.ListSellers(ctx)
	if err != nil {
		return res, fmt.Errorf("list sellers: %w", err)
	}
	return r.resolveSeller(res, sellers, raw), nil
}

func (r *IdentityResolver) resolveAdmin(ctx context.Context, raw string) (bool, error) {
	configured, err := r.settings.GetSetting(ctx, SettingAdminInstance)
	if err != nil {
		return false, fmt.Errorf("read admin instance setting: %w", err)
	}
	configured = strings.TrimSpace(configured)
	if configured != "" {
		return strings.EqualFold(configured, raw), nil
	}

	names, err := r.users.ListAdminInstanceNames(ctx)
	if err != nil {
		return false, fmt.Errorf("list admin instances: %w", err)
	}
	for _, n := range names {
		if n != "" && strings.EqualFold(strings.TrimSpace(n), raw) {
			return true, nil
		}
	}
	return false, nil
}

func (r *IdentityResolver) resolveSeller(res Resolution, sellers []entities.Tenant, raw string) Resolution {
	lower := strings.ToLower(raw)

	for i := range sellers {
		if strings.EqualFold(sellers[i].InstanceName, raw) {
			return found(res, &sellers[i], "exact")
		}
	}
	for i := range sellers {
		if strings.EqualFold(DerivedInstanceName(r.sellerPrefix, sellers[i].ID), raw) {
			return found(res, &sellers[i], "derived")
		}
	}
	for i := range sellers {
		if sellers[i].OriginalInstanceName != "" && strings.EqualFold(sellers[i].OriginalInstanceName, raw) {
			return found(res, &sellers[i], "original_instance_name")
		}
	}

	var candidates []int
	for i := range sellers {
		name := strings.ToLower(sellers[i].InstanceName)
		if name == "" {
			continue
		}
		if strings.Contains(name, lower) || strings.Contains(lower, name) {
			candidates = append(candidates, i)
		}
	}
	switch len(candidates) {
	case 1:
		return found(res, &sellers[candidates[0]], "partial")
	case 0:
		res.Reason = ReasonNotFound
	default:
		res.Reason = ReasonAmbiguous
	}
	return res
}

func found(res Resolution, t *entities.Tenant, by string) Resolution {
	res.Tenant = t
	res.Found = true
	res.MatchedBy = by
	res.Reason = ""
	return res
}
