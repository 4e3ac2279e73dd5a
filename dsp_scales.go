package fluxgraph

// scaleTables holds the semitone-offset sets shared by Quantizer, Chaos and
// the Turing machine, selected by a 0-7 scale index:
// 0 Chromatic, 1 Major, 2 Natural Minor, 3 Dorian, 4 Lydian, 5 Mixolydian,
// 6 Major Pentatonic, 7 Minor Pentatonic.
var scaleTables = [][]int{
	{0, 1, 2, 3, 4, 5, 6, 7, 8, 9, 10, 11}, // chromatic
	{0, 2, 4, 5, 7, 9, 11},                 // major
	{0, 2, 3, 5, 7, 8, 10},                 // natural minor
	{0, 2, 3, 5, 7, 9, 10},                 // dorian
	{0, 2, 4, 6, 7, 9, 11},                 // lydian
	{0, 2, 4, 5, 7, 9, 10},                 // mixolydian
	{0, 2, 4, 7, 9},                        // major pentatonic
	{0, 3, 5, 7, 10},                       // minor pentatonic
}

// quantizeToScale snaps a semitone value to the nearest degree of the given
// scale/root, searching the octave above and below to find the true nearest
// neighbor across the octave boundary.
func quantizeToScale(semitone Sample, scaleIndex, root int) Sample {
	if scaleIndex < 0 {
		scaleIndex = 0
	}
	if scaleIndex >= len(scaleTables) {
		scaleIndex = len(scaleTables) - 1
	}
	scale := scaleTables[scaleIndex]

	baseOctave := int(clampF64(float64(semitone)/12, -1e6, 1e6))
	if Sample(baseOctave)*12 > semitone {
		baseOctave--
	}

	bestNote := semitone
	bestDiff := Sample(1e9)
	for oct := baseOctave - 1; oct <= baseOctave+1; oct++ {
		for _, offset := range scale {
			candidate := Sample(oct*12 + root + offset)
			diff := candidate - semitone
			if diff < 0 {
				diff = -diff
			}
			if diff < bestDiff {
				bestDiff = diff
				bestNote = candidate
			}
		}
	}
	return bestNote
}
