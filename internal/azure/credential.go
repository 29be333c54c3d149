package azure

import (
	"fmt"

	"github.com/Azure/azure-sdk-for-go/sdk/azcore"
	"github.com/Azure/azure-sdk-for-go/sdk/azidentity"
)

const (
	// ManagementEndpoint is the Azure Resource Manager endpoint of the public cloud
	ManagementEndpoint = "https://management.azure.com"

	managementScope = "https://management.azure.com/.default"
)

// NewCredential returns the default Azure credential chain
// (environment, workload identity, managed identity, Azure CLI, ...)
func NewCredential() (azcore.TokenCredential, error) {
	cred, err := azidentity.NewDefaultAzureCredential(nil)
	if err != nil {
		return nil, fmt.Errorf("failed to create Azure credential: %w", err)
	}
	return cred, nil
}
