package seed

import (
	"context"
	"fmt"

	"driverhub/internal/store"
	"driverhub/pkg/types"
)

// DefaultPortalConfig is the source of truth for the operator-editable
// portal document. `driverhub seed` writes it; edits to branding or the
// status pipeline go here and get re-seeded.
func DefaultPortalConfig() *types.PortalConfig {
	return &types.PortalConfig{
		Branding: types.Branding{
			CompanyName:  "Darthstar Drivers",
			LogoURL:      "https://lv426dev.co.uk/wp-content/uploads/2025/11/HeroVillianYoda.png",
			PrimaryColor: "papaya",
		},
		StatusSteps: []types.StatusStep{
			{
				Status:      types.StatusSubmitted,
				Title:       "Application Submitted",
				Description: "Your application has been received and is being reviewed.",
			},
			{
				Status:      types.StatusUnderReview,
				Title:       "Under Review",
				Description: "We are currently reviewing your application.",
			},
			{
				Status:      types.StatusContacted,
				Title:       "Contacted",
				Description: "We have reached out to you regarding your application.",
			},
			{
				Status:      types.StatusMeetingScheduled,
				Title:       "Meeting Scheduled",
				Description: "A meeting has been scheduled to discuss your application.",
			},
			{
				Status:      types.StatusApproved,
				Title:       "Approved",
				Description: "Congratulations! Your application has been approved.",
			},
			{
				Status:      types.StatusRejected,
				Title:       "Not Accepted",
				Description: "Unfortunately, we are unable to proceed with your application at this time.",
			},
		},
	}
}

// SeedPortalConfig writes the default document, replacing whatever is there.
func SeedPortalConfig(ctx context.Context, repo *store.ConfigRepository) error {
	if err := repo.SavePortalConfig(ctx, store.DefaultConfigKey, DefaultPortalConfig()); err != nil {
		return fmt.Errorf("failed to seed portal config: %w", err)
	}

	return nil
}
