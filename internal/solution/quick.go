package solution

import (
	"context"
	"fmt"
	"math/rand"
)

const quickExcerptLength = 30

var quickAnswers = []string{
	"Based on the image and your description: \"%s...\", here's how to fix it:\n\n1. Unplug the device and wait 30 seconds\n2. Remove the back panel using a Phillips screwdriver\n3. Check for loose connections or damaged components\n4. Reconnect any loose cables\n5. Replace the back panel and power on the device",
	"After analyzing your item with the description: \"%s...\", I recommend:\n\n1. Clean the affected area with isopropyl alcohol\n2. Allow to dry completely (approximately 10 minutes)\n3. Apply adhesive to the broken section\n4. Hold firmly for 60 seconds\n5. Let cure for 24 hours before using",
	"To fix this issue described as: \"%s...\", follow these steps:\n\n1. Reset the system by holding the power button for 10 seconds\n2. Update the firmware to the latest version\n3. Clear the cache by navigating to Settings > Storage > Clear Cache\n4. Restart the device\n5. If the problem persists, check for hardware damage",
	"For your problem described as: \"%s...\", the solution is:\n\n1. Check if the item is properly connected to power\n2. Inspect for visible damage to the exterior\n3. Test with an alternative power source\n4. Reset to factory settings using the pinhole reset button\n5. If these steps don't resolve the issue, the internal component may need replacement",
}

// Quick returns one of a few short canned five-step answers.
type Quick struct {
	rnd *lockedRand
}

// NewQuick returns a Quick generator. A nil r seeds from the clock.
func NewQuick(r *rand.Rand) *Quick {
	return &Quick{rnd: newLockedRand(r)}
}

func (q *Quick) Name() string { return ProviderQuick }

func (q *Quick) Generate(ctx context.Context, req Request) (string, error) {
	if err := ctx.Err(); err != nil {
		return "", err
	}
	answer := quickAnswers[q.rnd.Intn(len(quickAnswers))]
	return fmt.Sprintf(answer, excerpt(req.Description, quickExcerptLength)), nil
}
