package main

import (
	"github.com/pulumi/pulumi/sdk/v3/go/pulumi"

	"github.com/GregMSThompson/agent-bridge/infra/cloudrun"
	"github.com/GregMSThompson/agent-bridge/infra/docker"
	"github.com/GregMSThompson/agent-bridge/infra/firestore"
	"github.com/GregMSThompson/agent-bridge/infra/identity"
	"github.com/GregMSThompson/agent-bridge/infra/kms"
	"github.com/GregMSThompson/agent-bridge/infra/provider"
)

func main() {
	pulumi.Run(func(ctx *pulumi.Context) error {
		prov, err := provider.SetupDefaultProvider(ctx)
		if err != nil {
			return err
		}

		// firebase sign-in for the /agent routes
		ident, err := identity.SetupIdentity(ctx, prov)
		if err != nil {
			return err
		}

		// conversation history
		db, err := firestore.SetupFirestore(ctx, prov)
		if err != nil {
			return err
		}

		if _, err := kms.SetupKMS(ctx, prov); err != nil {
			return err
		}
		historyKey, err := kms.CreateKey(ctx, prov, "agent-bridge", "history")
		if err != nil {
			return err
		}

		repo, err := docker.CreateCloudrunRepo(ctx, prov)
		if err != nil {
			return err
		}

		svc, err := cloudrun.SetupCloudRun(ctx, prov, historyKey, ident, db, repo)
		if err != nil {
			return err
		}

		ctx.Export("serviceUrl", svc.Statuses.Index(pulumi.Int(0)).Url())
		ctx.Export("historyKey", historyKey)
		return nil
	})
}
