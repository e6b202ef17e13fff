package cloudrun

import (
	"encoding/json"
	"fmt"
	"strconv"

	"github.com/pulumi/pulumi-docker/sdk/v4/go/docker"
	"github.com/pulumi/pulumi-gcp/sdk/v9/go/gcp"
	"github.com/pulumi/pulumi-gcp/sdk/v9/go/gcp/cloudrun"
	"github.com/pulumi/pulumi-gcp/sdk/v9/go/gcp/projects"
	"github.com/pulumi/pulumi-gcp/sdk/v9/go/gcp/serviceaccount"
	"github.com/pulumi/pulumi/sdk/v3/go/pulumi"
	"github.com/pulumi/pulumi/sdk/v3/go/pulumi/config"

	"github.com/GregMSThompson/agent-bridge/infra/common"
	infradocker "github.com/GregMSThompson/agent-bridge/infra/docker"
	"github.com/GregMSThompson/agent-bridge/infra/kms"
	"github.com/GregMSThompson/agent-bridge/infra/secret"
)

// SetupCloudRun deploys the bridge API with its service account, the AWS
// credentials secret it signs agent calls with and access to the history
// key.
func SetupCloudRun(ctx *pulumi.Context,
	prov *gcp.Provider,
	historyKey pulumi.StringOutput,
	res ...pulumi.Resource) (*cloudrun.Service, error) {
	img, err := buildApiImage(ctx, res...)
	if err != nil {
		return nil, err
	}

	srv, err := enableCloudRun(ctx, prov)
	if err != nil {
		return nil, err
	}

	apiSA, err := createServiceAccount(ctx, prov)
	if err != nil {
		return nil, err
	}

	if _, err := secret.SetupSecretManager(ctx, prov); err != nil {
		return nil, err
	}
	awsSecret, err := createAWSCredentialsSecret(ctx, apiSA)
	if err != nil {
		return nil, err
	}

	if err := kms.GrantEncrypterDecrypter(ctx, prov, historyKey, apiSA); err != nil {
		return nil, err
	}

	svc, err := createCloudRunService(ctx, img, apiSA, awsSecret, historyKey, prov, srv)
	if err != nil {
		return nil, err
	}

	if err := setIAMAccessPolicy(ctx, svc, prov); err != nil {
		return nil, err
	}

	return svc, nil
}

func buildApiImage(ctx *pulumi.Context, res ...pulumi.Resource) (*docker.Image, error) {
	gcpCfg := config.New(ctx, "gcp")
	projectID := gcpCfg.Require("project")
	region := gcpCfg.Require("region")

	hash, err := common.GenerateHash("../")
	if err != nil {
		return nil, err
	}

	return docker.NewImage(ctx, "apiImage", &docker.ImageArgs{
		Build: docker.DockerBuildArgs{
			Platform:   pulumi.String("linux/amd64"),
			Context:    pulumi.String(".."),
			Dockerfile: pulumi.String("../cmd/api/Dockerfile"),
		},
		ImageName: pulumi.String(fmt.Sprintf("%s-docker.pkg.dev/%s/%s/agent-bridge-api:%s",
			region, projectID, infradocker.RepositoryID, hash)),
	},
		pulumi.DependsOn(res),
	)
}

func enableCloudRun(ctx *pulumi.Context, prov *gcp.Provider) (*projects.Service, error) {
	return projects.NewService(ctx, "cloudRunService", &projects.ServiceArgs{
		Service: pulumi.String("run.googleapis.com"),
	},
		pulumi.Provider(prov),
	)
}

func createServiceAccount(ctx *pulumi.Context, prov *gcp.Provider) (*serviceaccount.Account, error) {
	gcpCfg := config.New(ctx, "gcp")
	projectID := gcpCfg.Require("project")

	apiSA, err := serviceaccount.NewAccount(ctx, "bridgeServiceAccount", &serviceaccount.AccountArgs{
		AccountId:   pulumi.String("agent-bridge"),
		DisplayName: pulumi.String("Agent Bridge Service Account"),
	},
		pulumi.Provider(prov),
	)
	if err != nil {
		return nil, err
	}

	_, err = projects.NewIAMMember(ctx, "firestoreAccess", &projects.IAMMemberArgs{
		Role: pulumi.String("roles/datastore.user"), // history read/write
		Member: apiSA.Email.ApplyT(func(email string) string {
			return fmt.Sprintf("serviceAccount:%s", email)
		}).(pulumi.StringOutput),
		Project: pulumi.String(projectID),
	},
		pulumi.Provider(prov),
	)
	if err != nil {
		return nil, err
	}

	return apiSA, nil
}

// createAWSCredentialsSecret stores the IAM key pair used to sign agent
// calls in the JSON shape the service reads.
func createAWSCredentialsSecret(ctx *pulumi.Context, apiSA *serviceaccount.Account) (pulumi.StringOutput, error) {
	awsCfg := config.New(ctx, "aws")
	accessKeyID := awsCfg.RequireSecret("accessKeyId")
	secretAccessKey := awsCfg.RequireSecret("secretAccessKey")

	doc := pulumi.All(accessKeyID, secretAccessKey).ApplyT(func(args []interface{}) (string, error) {
		b, err := json.Marshal(map[string]string{
			"accessKeyId":     args[0].(string),
			"secretAccessKey": args[1].(string),
		})
		return string(b), err
	}).(pulumi.StringOutput)

	return secret.AddSecret(ctx, "awsCredentialsSecret", "agentBridgeAwsCredentials", doc, apiSA)
}

func env(name string, value pulumi.StringInput) *cloudrun.ServiceTemplateSpecContainerEnvArgs {
	return &cloudrun.ServiceTemplateSpecContainerEnvArgs{Name: pulumi.String(name), Value: value}
}

func createCloudRunService(ctx *pulumi.Context,
	img *docker.Image,
	apiSA *serviceaccount.Account,
	awsSecret pulumi.StringOutput,
	historyKey pulumi.StringOutput,
	prov *gcp.Provider,
	res ...pulumi.Resource) (*cloudrun.Service, error) {
	gcpCfg := config.New(ctx, "gcp")
	crCfg := config.New(ctx, "cloudrun")
	agentCfg := config.New(ctx, "agent")

	projectID := gcpCfg.Require("project")
	region := gcpCfg.Require("region")
	minScale := crCfg.Require("minScale")
	maxScale := crCfg.Require("maxScale")
	cpu := crCfg.Require("cpu")
	memory := crCfg.Require("memory")
	concurrency := crCfg.Require("concurrency")
	logLevel := crCfg.Require("logLevel")
	timeout, _ := strconv.Atoi(crCfg.Require("timeout"))

	awsRegion := agentCfg.Require("awsRegion")
	agentID := agentCfg.Require("agentId")
	agentAliasID := agentCfg.Require("agentAliasId")
	agentTimeout := agentCfg.Get("timeout")
	if agentTimeout == "" {
		agentTimeout = "60s"
	}
	historyTTL := agentCfg.Get("historyTTL")
	if historyTTL == "" {
		historyTTL = "720h"
	}
	concat := strconv.FormatBool(agentCfg.GetBool("concatChunks"))

	return cloudrun.NewService(ctx, "bridgeService", &cloudrun.ServiceArgs{
		Location: pulumi.String(region),

		Template: &cloudrun.ServiceTemplateArgs{
			Metadata: &cloudrun.ServiceTemplateMetadataArgs{
				Annotations: pulumi.StringMap{
					"run.googleapis.com/launch-stage":      pulumi.String("BETA"),
					"run.googleapis.com/identity-provider": pulumi.String("firebase"),

					"autoscaling.knative.dev/minScale": pulumi.String(minScale),
					"autoscaling.knative.dev/maxScale": pulumi.String(maxScale),

					"run.googleapis.com/cpu":    pulumi.String(cpu),
					"run.googleapis.com/memory": pulumi.String(memory),

					"run.googleapis.com/cpu-throttling": pulumi.String("true"),

					// agent calls are long lived, keep this low
					"run.googleapis.com/container-concurrency": pulumi.String(concurrency),
				},
			},

			Spec: &cloudrun.ServiceTemplateSpecArgs{
				ServiceAccountName: apiSA.Email,
				TimeoutSeconds:     pulumi.Int(timeout),

				Containers: cloudrun.ServiceTemplateSpecContainerArray{
					&cloudrun.ServiceTemplateSpecContainerArgs{
						Image: img.ImageName,
						Ports: cloudrun.ServiceTemplateSpecContainerPortArray{
							&cloudrun.ServiceTemplateSpecContainerPortArgs{
								ContainerPort: pulumi.Int(8080),
							},
						},
						Envs: cloudrun.ServiceTemplateSpecContainerEnvArray{
							env("PROJECTID", pulumi.String(projectID)),
							env("LOGLEVEL", pulumi.String(logLevel)),
							env("AWSREGION", pulumi.String(awsRegion)),
							env("AGENTID", pulumi.String(agentID)),
							env("AGENTALIASID", pulumi.String(agentAliasID)),
							env("AGENTTIMEOUT", pulumi.String(agentTimeout)),
							env("CONCATCHUNKS", pulumi.String(concat)),
							env("AWSCREDENTIALSSECRET", awsSecret),
							env("HISTORYBACKEND", pulumi.String("firestore")),
							env("HISTORYTTL", pulumi.String(historyTTL)),
							env("KMSKEYNAME", historyKey),
							env("FIREBASEAUTH", pulumi.String("true")),
						},
					},
				},
			},
		},
	},
		pulumi.Provider(prov),
		pulumi.DependsOn(res),
	)
}

func setIAMAccessPolicy(ctx *pulumi.Context, svc *cloudrun.Service, prov *gcp.Provider) error {
	gcpCfg := config.New(ctx, "gcp")
	region := gcpCfg.Require("region")

	// Firebase tokens are checked in the service itself
	_, err := cloudrun.NewIamMember(ctx, "publicInvoker", &cloudrun.IamMemberArgs{
		Service:  svc.Name,
		Location: pulumi.String(region),
		Role:     pulumi.String("roles/run.invoker"),
		Member:   pulumi.String("allUsers"),
	},
		pulumi.Provider(prov),
	)
	return err
}
