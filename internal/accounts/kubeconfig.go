package accounts

import (
	"encoding/base64"
	"encoding/json"
	"errors"
	"fmt"
	"os"
	"path/filepath"

	"k8s.io/client-go/tools/clientcmd"
	"k8s.io/client-go/tools/clientcmd/api"
)

// AccessFile is the compact machine readable form of a kubeconfig.
type AccessFile struct {
	Server    string `json:"server"`
	CA        string `json:"ca"`
	Token     string `json:"token"`
	Namespace string `json:"namespace,omitempty"`
}

// BuildKubeconfig renders a single-context token kubeconfig.
func BuildKubeconfig(clusterName, user string, access AccessFile) ([]byte, error) {
	ca, err := base64.StdEncoding.DecodeString(access.CA)
	if err != nil {
		return nil, fmt.Errorf("failed to decode CA: %w", err)
	}

	cluster := api.NewCluster()
	cluster.Server = access.Server
	cluster.CertificateAuthorityData = ca

	authInfo := api.NewAuthInfo()
	authInfo.Token = access.Token

	kubeContext := api.NewContext()
	kubeContext.Cluster = clusterName
	kubeContext.AuthInfo = user
	kubeContext.Namespace = access.Namespace

	kubeconfig := api.NewConfig()
	kubeconfig.Clusters[clusterName] = cluster
	kubeconfig.AuthInfos[user] = authInfo
	kubeconfig.Contexts[user] = kubeContext
	kubeconfig.CurrentContext = user

	return clientcmd.Write(*kubeconfig)
}

func writePrivate(path string, data []byte) error {
	if err := os.MkdirAll(filepath.Dir(path), 0700); err != nil {
		return fmt.Errorf("failed to create %s: %w", filepath.Dir(path), err)
	}
	if err := os.WriteFile(path, data, 0600); err != nil {
		return fmt.Errorf("failed to write %s: %w", path, err)
	}
	// WriteFile keeps the mode of an existing file.
	return os.Chmod(path, 0600)
}

func writeAccessFiles(kubeconfigPath, accessPath string, kubeconfig []byte, access AccessFile) error {
	data, err := json.Marshal(access)
	if err != nil {
		return fmt.Errorf("failed to encode access file: %w", err)
	}
	if err := writePrivate(kubeconfigPath, kubeconfig); err != nil {
		return err
	}
	return writePrivate(accessPath, data)
}

func removeIfExists(paths ...string) error {
	var errs []error
	for _, p := range paths {
		if err := os.Remove(p); err != nil && !errors.Is(err, os.ErrNotExist) {
			errs = append(errs, err)
		}
	}
	return errors.Join(errs...)
}
