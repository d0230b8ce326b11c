// Package accounts provisions tenant and admin deployer accounts.
//
// A tenant owns the namespace tenant-{name} with a ServiceAccount, a Role
// limited to a fixed resource allowlist, a RoleBinding and a
// service-account-token Secret. An admin deployer gets the same principal
// in the system namespace bound to a ClusterRole. Both variants produce a
// kubeconfig and a compact JSON access file under {stateDir}/kubeconfigs.
package accounts
