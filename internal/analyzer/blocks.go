package analyzer

import (
	"encoding/binary"
	"runtime"
	"sort"
	"strings"

	"github.com/sergi/go-diff/diffmatchpatch"
	"github.com/sourcegraph/conc/pool"
	"github.com/zeebo/blake3"

	"cruft/pkg/config"
	"cruft/pkg/models"
)

// textBlock is a maximal run of non-blank, non-comment lines, the
// candidate unit of fuzzy matching.
type textBlock struct {
	File      string
	StartLine uint32
	Lines     []string
	Text      string
}

func (b textBlock) ref() models.BlockRef {
	preview := b.Lines[0]
	if len(preview) > 50 {
		preview = preview[:50] + "..."
	}
	return models.BlockRef{
		File:      b.File,
		StartLine: b.StartLine,
		Preview:   preview,
		Lines:     len(b.Lines),
	}
}

// extractBlocks splits a file into candidate blocks. Lines are stored
// stripped so indentation differences do not affect similarity.
func extractBlocks(path string, lines []string, minLines int) []textBlock {
	var blocks []textBlock
	var current []string
	start := 0

	flush := func() {
		if len(current) >= minLines {
			blocks = append(blocks, textBlock{
				File:      path,
				StartLine: uint32(start + 1),
				Lines:     current,
				Text:      strings.Join(current, "\n"),
			})
		}
		current = nil
	}

	for i, raw := range lines {
		trimmed := strings.TrimSpace(raw)
		if trimmed == "" || isCommentLine(trimmed) {
			flush()
			continue
		}
		if current == nil {
			start = i
		}
		current = append(current, trimmed)
	}
	flush()

	return blocks
}

func isCommentLine(trimmed string) bool {
	for _, prefix := range commentPrefixes {
		if strings.HasPrefix(trimmed, prefix) {
			return true
		}
	}
	return false
}

// matchBlocks finds near-duplicate block pairs. Candidate selection is
// all-pairs by default; the bucketing pre-filter bounds it on large
// corpora. Pair scoring runs in parallel; the emitted list is sorted
// deterministically regardless of execution order.
func (p *Patterns) matchBlocks(blocks []textBlock) []models.BlockPair {
	bcfg := p.cfg.Patterns.Bucketing
	if bcfg.MaxBlocks > 0 && len(blocks) > bcfg.MaxBlocks {
		blocks = blocks[:bcfg.MaxBlocks]
	}
	if len(blocks) < 2 {
		return []models.BlockPair{}
	}

	var candidates [][2]int
	if bcfg.Enabled {
		candidates = bucketCandidates(blocks, bcfg)
	} else {
		for i := range blocks {
			for j := i + 1; j < len(blocks); j++ {
				candidates = append(candidates, [2]int{i, j})
			}
		}
	}

	threshold := p.cfg.Patterns.SimilarityThreshold
	scores := make([]float64, len(candidates))

	wp := pool.New().WithMaxGoroutines(runtime.NumCPU())
	for idx, pair := range candidates {
		wp.Go(func() {
			a, b := blocks[pair[0]], blocks[pair[1]]
			if a.File == b.File && rangesOverlap(a, b) {
				return
			}
			scores[idx] = similarityRatio(a.Text, b.Text)
		})
	}
	wp.Wait()

	pairs := make([]models.BlockPair, 0)
	for idx, pair := range candidates {
		s := scores[idx]
		// Identical blocks belong to exact duplication, not here.
		if s < threshold || s >= 1.0 {
			continue
		}
		pairs = append(pairs, models.BlockPair{
			Similarity: s,
			Block1:     blocks[pair[0]].ref(),
			Block2:     blocks[pair[1]].ref(),
		})
	}

	sort.Slice(pairs, func(i, j int) bool {
		if pairs[i].Similarity != pairs[j].Similarity {
			return pairs[i].Similarity > pairs[j].Similarity
		}
		if pairs[i].Block1.File != pairs[j].Block1.File {
			return pairs[i].Block1.File < pairs[j].Block1.File
		}
		return pairs[i].Block1.StartLine < pairs[j].Block1.StartLine
	})

	return capGroups(pairs, p.cfg.Patterns.MaxBlockPairs)
}

func rangesOverlap(a, b textBlock) bool {
	aEnd := a.StartLine + uint32(len(a.Lines))
	bEnd := b.StartLine + uint32(len(b.Lines))
	return a.StartLine < bEnd && b.StartLine < aEnd
}

// similarityRatio is the character-level longest-common-subsequence
// ratio 2*M/T, where M is the matched character count and T the total
// length of both inputs.
func similarityRatio(a, b string) float64 {
	total := len(a) + len(b)
	if total == 0 {
		return 1.0
	}
	if a == b {
		return 1.0
	}

	dmp := diffmatchpatch.New()
	diffs := dmp.DiffMain(a, b, false)

	matched := 0
	for _, d := range diffs {
		if d.Type == diffmatchpatch.DiffEqual {
			matched += len(d.Text)
		}
	}
	return 2.0 * float64(matched) / float64(total)
}

// bucketCandidates narrows the pair set with shingle fingerprints and
// banded min-hashing. Only blocks sharing at least one band bucket are
// scored, so the result is a subset of the all-pairs candidates.
func bucketCandidates(blocks []textBlock, bcfg config.BucketingConfig) [][2]int {
	numHashes := bcfg.NumBands * bcfg.RowsPerBand
	signatures := make([][]uint64, len(blocks))
	for i, block := range blocks {
		signatures[i] = minHashSignature(shingleHashes(block.Text, bcfg.ShingleSize), numHashes)
	}

	seen := make(map[[2]int]struct{})
	var candidates [][2]int

	for band := 0; band < bcfg.NumBands; band++ {
		buckets := make(map[uint64][]int)
		for i, sig := range signatures {
			if sig == nil {
				continue
			}
			h := hashBand(sig[band*bcfg.RowsPerBand : (band+1)*bcfg.RowsPerBand])
			buckets[h] = append(buckets[h], i)
		}
		for _, members := range buckets {
			for x := 0; x < len(members); x++ {
				for y := x + 1; y < len(members); y++ {
					key := [2]int{members[x], members[y]}
					if _, dup := seen[key]; dup {
						continue
					}
					seen[key] = struct{}{}
					candidates = append(candidates, key)
				}
			}
		}
	}

	sort.Slice(candidates, func(i, j int) bool {
		if candidates[i][0] != candidates[j][0] {
			return candidates[i][0] < candidates[j][0]
		}
		return candidates[i][1] < candidates[j][1]
	})
	return candidates
}

// shingleHashes fingerprints every k-character shingle of the text.
func shingleHashes(text string, k int) []uint64 {
	if k <= 0 || len(text) < k {
		return nil
	}
	hashes := make([]uint64, 0, len(text)-k+1)
	for i := 0; i+k <= len(text); i++ {
		sum := blake3.Sum256([]byte(text[i : i+k]))
		hashes = append(hashes, binary.LittleEndian.Uint64(sum[:8]))
	}
	return hashes
}

// minHashSignature derives n min-hash values from one shingle set.
func minHashSignature(shingles []uint64, n int) []uint64 {
	if len(shingles) == 0 {
		return nil
	}
	sig := make([]uint64, n)
	for i := range sig {
		seed := uint64(i)*0x9e3779b97f4a7c15 + 0xbf58476d1ce4e5b9
		minVal := ^uint64(0)
		for _, sh := range shingles {
			v := mix64(sh ^ seed)
			if v < minVal {
				minVal = v
			}
		}
		sig[i] = minVal
	}
	return sig
}

// mix64 is a splitmix64 finalizer.
func mix64(x uint64) uint64 {
	x ^= x >> 30
	x *= 0xbf58476d1ce4e5b9
	x ^= x >> 27
	x *= 0x94d049bb133111eb
	x ^= x >> 31
	return x
}

func hashBand(rows []uint64) uint64 {
	h := uint64(14695981039346656037)
	for _, r := range rows {
		h ^= r
		h *= 1099511628211
	}
	return h
}
