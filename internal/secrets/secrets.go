// Package secrets fills unset sensitive settings from Google Secret Manager.
package secrets

import (
	"context"
	"fmt"
	"strings"

	secretmanager "cloud.google.com/go/secretmanager/apiv1"
	secretmanagerpb "cloud.google.com/go/secretmanager/apiv1/secretmanagerpb"
	"google.golang.org/grpc/codes"
	"google.golang.org/grpc/status"
)

// Accessor returns the payload of a fully qualified secret version name.
type Accessor interface {
	Access(ctx context.Context, name string) (string, error)
}

// Resolver looks secrets up by environment variable name: ORDER_TOKEN_SECRET
// maps to projects/{project}/secrets/order-token-secret/versions/latest.
type Resolver struct {
	accessor Accessor
	project  string
}

func NewResolver(accessor Accessor, project string) *Resolver {
	return &Resolver{accessor: accessor, project: strings.TrimSpace(project)}
}

// SecretName builds the version name for an environment variable.
func (r *Resolver) SecretName(envName string) string {
	id := strings.ToLower(strings.ReplaceAll(envName, "_", "-"))
	return fmt.Sprintf("projects/%s/secrets/%s/versions/latest", r.project, id)
}

// Fill resolves every target whose current value is empty. Secrets that do not
// exist are left empty so required-value validation reports them.
func (r *Resolver) Fill(ctx context.Context, targets map[string]*string) error {
	for envName, target := range targets {
		if target == nil || strings.TrimSpace(*target) != "" {
			continue
		}

		value, err := r.accessor.Access(ctx, r.SecretName(envName))
		if err != nil {
			if status.Code(err) == codes.NotFound {
				continue
			}
			return fmt.Errorf("resolve %s: %w", envName, err)
		}
		*target = strings.TrimSpace(value)
	}
	return nil
}

// ManagerAccessor reads secret versions through the Secret Manager API.
type ManagerAccessor struct {
	client *secretmanager.Client
}

func NewManagerAccessor(ctx context.Context) (*ManagerAccessor, error) {
	client, err := secretmanager.NewClient(ctx)
	if err != nil {
		return nil, fmt.Errorf("create secret manager client: %w", err)
	}
	return &ManagerAccessor{client: client}, nil
}

func (a *ManagerAccessor) Access(ctx context.Context, name string) (string, error) {
	resp, err := a.client.AccessSecretVersion(ctx, &secretmanagerpb.AccessSecretVersionRequest{Name: name})
	if err != nil {
		return "", err
	}
	if resp.GetPayload() == nil {
		return "", fmt.Errorf("secret %s has an empty payload", name)
	}
	return string(resp.GetPayload().GetData()), nil
}

func (a *ManagerAccessor) Close() error {
	return a.client.Close()
}
