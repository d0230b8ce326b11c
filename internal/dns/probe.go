package dns

import (
	"context"
	"errors"
	"fmt"

	"github.com/aws/aws-sdk-go-v2/aws"
	awsconfig "github.com/aws/aws-sdk-go-v2/config"
	"github.com/aws/aws-sdk-go-v2/credentials"
	"github.com/aws/aws-sdk-go-v2/service/sts"
	"github.com/aws/smithy-go"
	"github.com/digitalocean/godo"
	"golang.org/x/oauth2"

	"github.com/imamik/k8tenant/internal/lifecycle"
	"github.com/imamik/k8tenant/internal/platform/cloudflare"
	"github.com/imamik/k8tenant/internal/util/naming"
)

// Prober verifies provider credentials against the provider API.
type Prober func(ctx context.Context, creds lifecycle.Credentials) error

// ErrRejected marks credentials the provider refused.
var ErrRejected = errors.New("credentials rejected")

// DefaultProbers returns the live probe for each provider. OVH has no
// probe; presence of its keys is all Check verifies.
func DefaultProbers() map[naming.Provider]Prober {
	return map[naming.Provider]Prober{
		naming.ProviderCloudflare:   probeCloudflare,
		naming.ProviderRoute53:      probeRoute53,
		naming.ProviderDigitalOcean: probeDigitalOcean,
	}
}

func probeCloudflare(ctx context.Context, creds lifecycle.Credentials) error {
	var client *cloudflare.Client
	if token := string(creds["CF_DNS_API_TOKEN"]); token != "" {
		client = cloudflare.NewClient(token)
	} else {
		client = cloudflare.NewGlobalKeyClient(string(creds["CF_API_EMAIL"]), string(creds["CF_API_KEY"]))
	}
	if err := client.Verify(ctx); err != nil {
		return fmt.Errorf("%w: cloudflare: %w", ErrRejected, err)
	}
	return nil
}

// newGodoClient is replaced in tests.
var newGodoClient = func(ctx context.Context, token string) *godo.Client {
	tokenSource := oauth2.StaticTokenSource(&oauth2.Token{AccessToken: token})
	return godo.NewClient(oauth2.NewClient(ctx, tokenSource))
}

func probeDigitalOcean(ctx context.Context, creds lifecycle.Credentials) error {
	client := newGodoClient(ctx, string(creds["DO_AUTH_TOKEN"]))

	account, _, err := client.Account.Get(ctx)
	if err != nil {
		var errResp *godo.ErrorResponse
		if errors.As(err, &errResp) && errResp.Response != nil && errResp.Response.StatusCode == 401 {
			return fmt.Errorf("%w: digitalocean: %s", ErrRejected, errResp.Message)
		}
		return fmt.Errorf("digitalocean: %w", err)
	}
	if account.Status != "" && account.Status != "active" {
		return fmt.Errorf("%w: digitalocean account is %s", ErrRejected, account.Status)
	}
	return nil
}

// newSTSClient is replaced in tests.
var newSTSClient = func(ctx context.Context, creds lifecycle.Credentials) (stsAPI, error) {
	cfg, err := awsconfig.LoadDefaultConfig(ctx,
		awsconfig.WithRegion(string(creds["AWS_REGION"])),
		awsconfig.WithCredentialsProvider(credentials.NewStaticCredentialsProvider(
			string(creds["AWS_ACCESS_KEY_ID"]),
			string(creds["AWS_SECRET_ACCESS_KEY"]),
			"",
		)),
	)
	if err != nil {
		return nil, fmt.Errorf("failed to load AWS config: %w", err)
	}
	return sts.NewFromConfig(cfg), nil
}

type stsAPI interface {
	GetCallerIdentity(ctx context.Context, in *sts.GetCallerIdentityInput, optFns ...func(*sts.Options)) (*sts.GetCallerIdentityOutput, error)
}

func probeRoute53(ctx context.Context, creds lifecycle.Credentials) error {
	client, err := newSTSClient(ctx, creds)
	if err != nil {
		return err
	}
	out, err := client.GetCallerIdentity(ctx, &sts.GetCallerIdentityInput{})
	if err != nil {
		var apiErr smithy.APIError
		if errors.As(err, &apiErr) {
			switch apiErr.ErrorCode() {
			case "InvalidClientTokenId", "SignatureDoesNotMatch", "AccessDenied", "ExpiredToken":
				return fmt.Errorf("%w: route53: %s", ErrRejected, apiErr.ErrorMessage())
			}
		}
		return fmt.Errorf("route53: %w", err)
	}
	if aws.ToString(out.Arn) == "" {
		return fmt.Errorf("%w: route53: empty caller identity", ErrRejected)
	}
	return nil
}
