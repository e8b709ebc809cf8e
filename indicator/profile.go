package indicator

import (
	"sort"

	"github.com/mfriis/spotwatch/shared"
)

// DefaultProfileBins is the default number of price bins for volume profiles.
const DefaultProfileBins = 20

// profileNodeCount is the number of high/low volume nodes reported.
const profileNodeCount = 3

// PriceBin represents the price range covered by a single profile bin.
type PriceBin struct {
	Low  float64 `json:"low"`
	High float64 `json:"high"`
}

// VolumeProfile summarizes traded volume by closing price: the top bins by
// volume (HVN), the lowest nonzero bins (LVN) and the point of control.
type VolumeProfile struct {
	HVN []PriceBin `json:"hvn"`
	LVN []PriceBin `json:"lvn"`
	POC float64    `json:"poc"`
}

// BuildVolumeProfile approximates a volume profile by binning candle closes
// with volume weights. Returns nil when no profile can be built: no candles,
// no bins, a zero price range or no bin with nonzero volume. Closes landing on the
// range maximum are clamped into the last bin.
func BuildVolumeProfile(candles []shared.Candlestick, bins int) *VolumeProfile {
	if len(candles) == 0 || bins < 1 {
		return nil
	}

	lo := candles[0].Close
	hi := candles[0].Close
	for idx := range candles {
		if candles[idx].Close < lo {
			lo = candles[idx].Close
		}
		if candles[idx].Close > hi {
			hi = candles[idx].Close
		}
	}
	if hi <= lo {
		return nil
	}

	width := (hi - lo) / float64(bins)
	if width <= 0 {
		return nil
	}

	volumes := make([]float64, bins)
	for idx := range candles {
		bin := int((candles[idx].Close - lo) / width)
		if bin >= bins {
			bin = bins - 1
		}
		volumes[bin] += candles[idx].Volume
	}

	type binVolume struct {
		bin    int
		volume float64
	}

	nonzero := make([]binVolume, 0, bins)
	for bin, volume := range volumes {
		if volume > 0 {
			nonzero = append(nonzero, binVolume{bin: bin, volume: volume})
		}
	}
	if len(nonzero) == 0 {
		return nil
	}

	sort.SliceStable(nonzero, func(i, j int) bool {
		return nonzero[i].volume > nonzero[j].volume
	})

	hvnCount := profileNodeCount
	if hvnCount > len(nonzero) {
		hvnCount = len(nonzero)
	}
	hvnBins := nonzero[:hvnCount]

	lvnCount := profileNodeCount
	if lvnCount > len(nonzero) {
		lvnCount = len(nonzero)
	}
	lvnBins := make([]binVolume, lvnCount)
	copy(lvnBins, nonzero[len(nonzero)-lvnCount:])
	sort.SliceStable(lvnBins, func(i, j int) bool {
		return lvnBins[i].volume < lvnBins[j].volume
	})

	binRange := func(bin int) PriceBin {
		low := lo + float64(bin)*width
		return PriceBin{Low: low, High: low + width}
	}

	profile := &VolumeProfile{
		HVN: make([]PriceBin, 0, hvnCount),
		LVN: make([]PriceBin, 0, lvnCount),
	}
	for idx := range hvnBins {
		profile.HVN = append(profile.HVN, binRange(hvnBins[idx].bin))
	}
	for idx := range lvnBins {
		profile.LVN = append(profile.LVN, binRange(lvnBins[idx].bin))
	}

	pocLow := lo + float64(hvnBins[0].bin)*width
	profile.POC = pocLow + width/2

	return profile
}
