package accounts

import rbacv1 "k8s.io/api/rbac/v1"

var allVerbs = []string{"get", "list", "watch", "create", "update", "patch", "delete"}

// allowedRules is the resource allowlist granted to every account.
func allowedRules() []rbacv1.PolicyRule {
	return []rbacv1.PolicyRule{
		{
			APIGroups: []string{"apps"},
			Resources: []string{"deployments", "statefulsets", "daemonsets", "replicasets"},
			Verbs:     allVerbs,
		},
		{
			APIGroups: []string{""},
			Resources: []string{"pods", "services", "secrets", "configmaps"},
			Verbs:     allVerbs,
		},
		{
			APIGroups: []string{""},
			Resources: []string{"pods/log"},
			Verbs:     []string{"get", "list"},
		},
		{
			APIGroups: []string{"networking.k8s.io"},
			Resources: []string{"ingresses"},
			Verbs:     allVerbs,
		},
		{
			APIGroups: []string{"traefik.io", "traefik.containo.us"},
			Resources: []string{"ingressroutes"},
			Verbs:     allVerbs,
		},
		{
			APIGroups: []string{"batch"},
			Resources: []string{"jobs", "cronjobs"},
			Verbs:     allVerbs,
		},
	}
}

// clusterRules extends the allowlist with namespace management for admin
// deployers.
func clusterRules() []rbacv1.PolicyRule {
	return append(allowedRules(), rbacv1.PolicyRule{
		APIGroups: []string{""},
		Resources: []string{"namespaces"},
		Verbs:     []string{"get", "list", "watch", "create"},
	})
}
