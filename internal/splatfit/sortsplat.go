package splatfit

import (
	"math"
	"sort"
)

// Stage 4: flatten (point, tile) memberships into a single index list
// ordered by (tile, depth) ascending and compute per-tile ranges into it.
// Ascending depth within a tile means front-to-back, the order the
// blending stage accumulates in. Points with tiles == 0 (invisible or
// degenerate) emit no entries.

type splatKey struct {
	key uint64 // tile id in the high 32 bits, depth float bits in the low 32
	idx int32
}

func (cp *CPUPipeline) SortSplats(uv, depth []Real, cam Camera, radius, tiles []int32) ([]int32, []TileRange, error) {
	const stage = "sort"
	n := len(depth)
	if len(uv) != 2*n || len(radius) != n || len(tiles) != n {
		return nil, nil, stageErrf(stage, "field sizes disagree for n=%d: uv=%d radius=%d tiles=%d", n, len(uv)/2, len(radius), len(tiles))
	}
	tilesX, tilesY := cam.TilesX(), cam.TilesY()
	total := 0
	for i, cnt := range tiles {
		if cnt < 0 {
			return nil, nil, stageErrf(stage, "negative tile count %d for point %d", cnt, i)
		}
		if cnt > 0 && depth[i] <= 0 {
			return nil, nil, stageErrf(stage, "point %d has tile memberships but invalid depth %f", i, depth[i])
		}
		total += int(cnt)
	}

	entries := make([]splatKey, 0, total)
	for i := 0; i < n; i++ {
		if tiles[i] == 0 {
			continue
		}
		x0, x1, y0, y1 := tileBounds(uv[2*i], uv[2*i+1], radius[i], cam)
		// Positive float32 bit patterns sort like the values themselves.
		dbits := uint64(math.Float32bits(depth[i]))
		for ty := y0; ty < y1; ty++ {
			for tx := x0; tx < x1; tx++ {
				tile := uint64(ty*tilesX + tx)
				entries = append(entries, splatKey{key: tile<<32 | dbits, idx: int32(i)})
			}
		}
	}
	if len(entries) != total {
		return nil, nil, stageErrf(stage, "tile memberships changed between stages: have %d, want %d", len(entries), total)
	}
	sort.Slice(entries, func(a, b int) bool { return entries[a].key < entries[b].key })

	order := make([]int32, len(entries))
	for i, e := range entries {
		order[i] = e.idx
	}
	ranges := make([]TileRange, tilesX*tilesY)
	pos := 0
	for tile := range ranges {
		start := pos
		for pos < len(entries) && int(entries[pos].key>>32) == tile {
			pos++
		}
		ranges[tile] = TileRange{Start: int32(start), End: int32(pos)}
	}
	return order, ranges, nil
}
