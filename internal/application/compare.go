package application

import (
	"fmt"
	"strings"

	"github.com/johnnohj/mu2-runtime/internal/domain"
)

const (
	// Outputs below this overlap ratio suggest the difference is more than
	// cosmetic ordering or formatting.
	similarityConcernThreshold = 0.8

	timingDiscrepancyMs = 1000
	timingAdvisoryMs    = 500
)

// Compare scores a physical execution against its virtual counterpart.
// It is pure and never errors: degraded comparisons surface as
// discrepancies and recommendations.
func Compare(physical, virtual domain.ExecutionResult) domain.ComparisonResult {
	normalizedPhysical := NormalizeOutput(physical.Output)
	normalizedVirtual := NormalizeOutput(virtual.Output)

	result := domain.ComparisonResult{
		OutputsMatch:  normalizedPhysical == normalizedVirtual,
		Similarity:    outputSimilarity(normalizedPhysical, normalizedVirtual),
		TimingDeltaMs: absInt64(physical.ElapsedMs - virtual.ElapsedMs),
	}

	if !result.OutputsMatch {
		result.Discrepancies = append(result.Discrepancies, "output mismatch between physical and virtual execution")
		if result.Similarity < similarityConcernThreshold {
			result.Recommendations = append(result.Recommendations,
				"outputs diverge significantly; check for hardware-specific behavior the virtual runtime cannot reproduce")
		}
	}

	if result.TimingDeltaMs > timingDiscrepancyMs {
		slower := "physical"
		if virtual.ElapsedMs > physical.ElapsedMs {
			slower = "virtual"
		}
		result.Discrepancies = append(result.Discrepancies,
			fmt.Sprintf("execution time differs by %dms", result.TimingDeltaMs))
		result.Recommendations = append(result.Recommendations,
			fmt.Sprintf("the %s execution was slower; look for blocking waits or I/O only present on that side", slower))
	}

	if physical.Success != virtual.Success {
		failing := "physical"
		hint := "verify the board is connected, powered and running compatible firmware"
		if physical.Success {
			failing = "virtual"
			hint = "verify the virtual runtime supports every module the code imports"
		}
		result.Discrepancies = append(result.Discrepancies,
			fmt.Sprintf("%s execution failed while the other succeeded", failing))
		result.Recommendations = append(result.Recommendations, hint)
	}

	if result.OutputsMatch && result.TimingDeltaMs < timingAdvisoryMs {
		result.Recommendations = append(result.Recommendations,
			"executions are consistent; the virtual runtime is a reliable stand-in for this code")
	}

	return result
}

// NormalizeOutput unifies line endings, strips REPL echo prefixes, trims
// each line and collapses runs of blank lines.
func NormalizeOutput(output string) string {
	output = strings.ReplaceAll(output, "\r\n", "\n")
	output = strings.ReplaceAll(output, "\r", "\n")

	lines := strings.Split(output, "\n")
	normalized := make([]string, 0, len(lines))
	blank := false
	for _, line := range lines {
		line = strings.TrimPrefix(line, ">>> ")
		line = strings.TrimPrefix(line, "... ")
		line = strings.TrimSpace(line)

		if line == "" {
			if blank {
				continue
			}
			blank = true
		} else {
			blank = false
		}
		normalized = append(normalized, line)
	}

	return strings.TrimSpace(strings.Join(normalized, "\n"))
}

// outputSimilarity is an order-insensitive bag-overlap ratio over non-empty
// lines: reordered but identical output still scores 1.0.
func outputSimilarity(a, b string) float64 {
	linesA := splitLines(a)
	linesB := splitLines(b)

	if len(linesA) == 0 && len(linesB) == 0 {
		return 1.0
	}

	counts := make(map[string]int, len(linesA))
	for _, line := range linesA {
		if line == "" {
			continue
		}
		counts[line]++
	}

	common := 0
	for _, line := range linesB {
		if line == "" {
			continue
		}
		if counts[line] > 0 {
			counts[line]--
			common++
		}
	}

	longest := len(linesA)
	if len(linesB) > longest {
		longest = len(linesB)
	}
	if longest == 0 {
		return 1.0
	}

	return float64(common) / float64(longest)
}

func splitLines(s string) []string {
	if s == "" {
		return nil
	}
	return strings.Split(s, "\n")
}

func absInt64(v int64) int64 {
	if v < 0 {
		return -v
	}
	return v
}
