package firmware

import (
	"fmt"

	"github.com/sirupsen/logrus"

	"github.com/ramseymcgrath/PCILeechFWGenerator/internal/board"
	"github.com/ramseymcgrath/PCILeechFWGenerator/internal/layout"
	"github.com/ramseymcgrath/PCILeechFWGenerator/internal/pci"
	"github.com/ramseymcgrath/PCILeechFWGenerator/internal/profile"
	"github.com/ramseymcgrath/PCILeechFWGenerator/internal/snapshot"
)

// Pipeline drives a snapshot through layout validation, repair and
// scrubbing, producing everything the output writer needs.
type Pipeline struct {
	Board   *board.Board
	Profile *profile.DeviceProfile

	// AutoFix repairs invalid MSI-X layouts instead of aborting.
	AutoFix bool
}

// BuildResult is the outcome of a pipeline run.
type BuildResult struct {
	// ConfigSpace is the scrubbed and pruned config space with the final
	// MSI-X layout encoded, ready for COE generation.
	ConfigSpace *pci.ConfigSpace

	BARs *pci.BARTable
	MSIX *pci.MSIXCapability

	// Layout is the validation of the final (possibly repaired) layout.
	Layout layout.Result

	Actions  []string // layout repairs applied
	Removed  []string // capabilities stripped
	Strategy InterruptStrategy
	IDs      DeviceIDs
}

// Run executes the pipeline against a captured device context.
func (p *Pipeline) Run(ctx *snapshot.DeviceContext) (*BuildResult, error) {
	if p.Board == nil {
		return nil, fmt.Errorf("pipeline needs a target board")
	}
	prof := p.Profile
	if prof == nil {
		prof = &profile.DeviceProfile{}
	}

	cs, err := ctx.ConfigSpace()
	if err != nil {
		return nil, fmt.Errorf("snapshot config space: %w", err)
	}

	log := logrus.WithField("pci", ctx.Device.BDF.String())

	sizes := prof.BARSizes
	if len(sizes) == 0 {
		sizes = profile.SizesFromBARs(ctx.BARs)
	}

	bars, barFindings := pci.ParseBARs(cs, sizes)
	for _, f := range barFindings {
		log.Warn(f.String())
	}

	msix, err := pci.ParseMSIX(cs)
	if err != nil {
		return nil, fmt.Errorf("snapshot MSI-X capability: %w", err)
	}

	reserved := make([]layout.ReservedRegion, 0, len(p.Board.Reserved)+len(prof.Reserved))
	reserved = append(reserved, p.Board.Reserved...)
	reserved = append(reserved, prof.Reserved...)

	result := layout.Validate(bars, msix, reserved)
	var actions []string
	if !result.Valid() {
		for _, f := range result.Errors() {
			log.Error(f.String())
		}
		if !p.AutoFix {
			return nil, fmt.Errorf("MSI-X layout is invalid (%s); enable auto-fix or repair the profile", result.Summary())
		}

		bars, msix, actions = layout.AutoFix(bars, msix, reserved)
		for _, a := range actions {
			log.Info(a)
		}

		result = layout.Validate(bars, msix, reserved)
		if !result.Valid() {
			return nil, fmt.Errorf("auto-fix could not repair the MSI-X layout (%s)", result.Summary())
		}
	}
	for _, f := range result.Warnings() {
		log.Warn(f.String())
	}

	p.checkShadowCapacity(bars, log)

	scrubbed, removed := ScrubConfigSpace(cs)

	ed := scrubbed.Edit()
	removed = append(removed, FilterCapabilities(ed, prof.RemoveCaps)...)
	removed = append(removed, FilterExtCapabilities(ed, prof.RemoveExtCaps)...)
	for _, msg := range removed {
		log.Info(msg)
	}

	// Write the final MSI-X layout into the shadow space, unless the
	// capability itself was pruned; then the strategy falls back to MSI.
	final := ed.Freeze()
	if msix != nil {
		if _, ok := pci.FindCapability(final, pci.CapIDMSIX); ok {
			msix.Encode(ed)
			final = ed.Freeze()
		} else {
			msix = nil
		}
	}

	res := &BuildResult{
		ConfigSpace: final,
		BARs:        bars,
		MSIX:        msix,
		Layout:      result,
		Actions:     actions,
		Removed:     removed,
		Strategy:    SelectInterruptStrategy(final),
		IDs:         ExtractDeviceIDs(final),
	}

	log.WithFields(logrus.Fields{
		"strategy": res.Strategy.String(),
		"actions":  len(actions),
		"removed":  len(removed),
	}).Info("build pipeline complete")

	return res, nil
}

// checkShadowCapacity warns about apertures larger than the board can back
// with BRAM; the card will alias reads above the shadow window.
func (p *Pipeline) checkShadowCapacity(bars *pci.BARTable, log *logrus.Entry) {
	for _, b := range bars.All() {
		if b.Size > p.Board.MaxBARBytes {
			log.Warnf("BAR%d (%s) exceeds the %s shadow capacity of %d KB",
				b.Index, b.SizeHuman(), p.Board.Name, p.Board.MaxBARBytes>>10)
		}
	}
}
