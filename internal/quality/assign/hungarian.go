// Package assign solves the rectangular linear assignment problem exactly.
package assign

import "math"

// Forbidden marks a cost matrix entry that must never be selected. Any cost
// at or above it is treated as forbidden.
const Forbidden = 1e18

// Solve implements the Kuhn–Munkres (Hungarian) algorithm with row and column
// potentials for an n×m cost matrix, minimising total cost in O(max(n,m)³).
//
// It returns assignments[i] = column assigned to row i, or -1 when row i is
// left unassigned (more rows than columns, or only forbidden columns remain).
//
// Rows are augmented in index order and columns scanned in index order, so
// ties between equally cheap assignments always resolve the same way for the
// same input.
func Solve(cost [][]float64) []int {
	n := len(cost)
	if n == 0 {
		return nil
	}
	m := len(cost[0])
	if m == 0 {
		result := make([]int, n)
		for i := range result {
			result[i] = -1
		}
		return result
	}

	dim := max(n, m)
	forbidden := make([][]bool, dim)
	maxAbs := 0.0
	for i := 0; i < dim; i++ {
		forbidden[i] = make([]bool, dim)
		for j := 0; j < dim; j++ {
			if i < n && j < m && j < len(cost[i]) && cost[i][j] < Forbidden {
				maxAbs = math.Max(maxAbs, math.Abs(cost[i][j]))
			} else {
				forbidden[i][j] = true
			}
		}
	}

	// Forbidden and padding entries get a penalty larger than any complete
	// finite assignment could cost. Using Forbidden itself would swamp the
	// potentials and lose the precision of the real costs.
	big := 2*float64(dim)*(maxAbs+1) + 1
	c := make([][]float64, dim)
	for i := 0; i < dim; i++ {
		c[i] = make([]float64, dim)
		for j := 0; j < dim; j++ {
			if forbidden[i][j] {
				c[i][j] = big
			} else {
				c[i][j] = cost[i][j]
			}
		}
	}

	// 1-indexed arrays keep the augmenting path arithmetic simple.
	const inf = math.MaxFloat64 / 2

	u := make([]float64, dim+1) // row potentials
	v := make([]float64, dim+1) // column potentials
	p := make([]int, dim+1)     // p[j] = row assigned to column j
	way := make([]int, dim+1)   // way[j] = previous column on the augmenting path
	minv := make([]float64, dim+1)
	used := make([]bool, dim+1)

	for i := 1; i <= dim; i++ {
		p[0] = i
		j0 := 0

		for j := 1; j <= dim; j++ {
			minv[j] = inf
			used[j] = false
		}

		for {
			used[j0] = true
			i0 := p[j0]
			delta := inf
			j1 := -1

			for j := 1; j <= dim; j++ {
				if used[j] {
					continue
				}
				cur := c[i0-1][j-1] - u[i0] - v[j]
				if cur < minv[j] {
					minv[j] = cur
					way[j] = j0
				}
				if minv[j] < delta {
					delta = minv[j]
					j1 = j
				}
			}

			if j1 < 0 {
				break
			}

			for j := 0; j <= dim; j++ {
				if used[j] {
					u[p[j]] += delta
					v[j] -= delta
				} else {
					minv[j] -= delta
				}
			}

			j0 = j1
			if p[j0] == 0 {
				break
			}
		}

		for j0 != 0 {
			p[j0] = p[way[j0]]
			j0 = way[j0]
		}
	}

	rowAssign := make([]int, dim)
	for i := range rowAssign {
		rowAssign[i] = -1
	}
	for j := 1; j <= dim; j++ {
		if p[j] > 0 && p[j] <= dim {
			rowAssign[p[j]-1] = j - 1
		}
	}

	// Trim padding and drop forbidden pairs.
	result := make([]int, n)
	for i := 0; i < n; i++ {
		col := rowAssign[i]
		if col < 0 || col >= m || forbidden[i][col] {
			result[i] = -1
		} else {
			result[i] = col
		}
	}
	return result
}
