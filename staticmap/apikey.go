// Copyright 2025 The Parcela Authors
// SPDX-License-Identifier: Apache-2.0

package staticmap

import (
	"context"
	"errors"
	"fmt"
	"log"
	"os"

	apikeys "cloud.google.com/go/apikeys/apiv2"
	"cloud.google.com/go/apikeys/apiv2/apikeyspb"
	"golang.org/x/oauth2/google"
	"google.golang.org/api/iterator"
)

// APIKeyEnv is the environment variable holding the Static Maps key.
const APIKeyEnv = "GOOGLE_MAPS_API_KEY"

// KeyDisplayName is the display name of the API key looked up through
// Application Default Credentials when APIKeyEnv is not set.
const KeyDisplayName = "Parcela Static Maps Key"

// ResolveAPIKey returns the key from APIKeyEnv, or else the key named
// KeyDisplayName in the project of the default credentials.
func ResolveAPIKey(ctx context.Context) (string, error) {
	if key := os.Getenv(APIKeyEnv); key != "" {
		return key, nil
	}

	log.Printf("%s is not set. Attempting to retrieve via ADC...", APIKeyEnv)

	return apiKeyFromADC(ctx)
}

func apiKeyFromADC(ctx context.Context) (string, error) {
	creds, err := google.FindDefaultCredentials(ctx, "https://www.googleapis.com/auth/cloud-platform")
	if err != nil {
		return "", fmt.Errorf("finding default credentials: %w", err)
	}

	projectID := creds.ProjectID
	if projectID == "" {
		// user credentials without a quota project
		projectID = os.Getenv("GOOGLE_CLOUD_PROJECT")
	}

	if projectID == "" {
		return "", errors.New("no project ID in the default credentials nor in GOOGLE_CLOUD_PROJECT")
	}

	client, err := apikeys.NewClient(ctx)
	if err != nil {
		return "", fmt.Errorf("creating apikeys client: %w", err)
	}
	defer client.Close()

	it := client.ListKeys(ctx, &apikeyspb.ListKeysRequest{
		Parent: fmt.Sprintf("projects/%s/locations/global", projectID),
	})

	for {
		key, err := it.Next()
		if errors.Is(err, iterator.Done) {
			break
		}

		if err != nil {
			return "", fmt.Errorf("listing keys: %w", err)
		}

		if key.DisplayName != KeyDisplayName {
			continue
		}

		// ListKeys redacts the secret
		resp, err := client.GetKeyString(ctx, &apikeyspb.GetKeyStringRequest{Name: key.Name})
		if err != nil {
			return "", fmt.Errorf("getting key string: %w", err)
		}

		if resp.KeyString == "" {
			return "", fmt.Errorf("key '%s' found but KeyString is empty", KeyDisplayName)
		}

		return resp.KeyString, nil
	}

	return "", fmt.Errorf("key with display name '%s' not found in project %s", KeyDisplayName, projectID)
}
