package stats

const (
	maxLutTotal int = 32768
)

// LandBuckets
//
// 用來快速定位總位移 ->  DistRecord 位置 O(1)
//
// 請勿修改預設值
//   - 區間以「總位移 / 最大總位移」的比例劃分: [0,0], (0,5%), [5%,10%), ..., [70%,90%), [90%,100%]
//   - 均勻洗牌的期望總位移約為最大值的 2/3，會落在 [50%,70%)
type LandBuckets struct {
	dispBucketPermille []int
	dispBucketStr      []string
	dispBucketMap      map[int]*LandBucket
}

type LandBucket struct {
	maxTotalDisp      int
	lutMaxDisp        int
	dispBucketByTotal []int
	dispBucketLUT     []int
	topBoundary       int
	maxIdx            int
}

// Buckets
//
// 用來快速定位總位移 ->  DistRecord 位置 O(1)
//
// 請勿修改預設值
//   - 區間以「總位移 / 最大總位移」的比例劃分: [0,0], (0,5%), [5%,10%), ..., [70%,90%), [90%,100%]
var Buckets *LandBuckets = &LandBuckets{
	dispBucketPermille: []int{0, 50, 100, 200, 300, 500, 700, 900},
	dispBucketStr:      []string{"[0,0]", "(0,5%)", "[5%,10%)", "[10%,20%)", "[20%,30%)", "[30%,50%)", "[50%,70%)", "[70%,90%)", "[90%,100%]"},
	dispBucketMap:      make(map[int]*LandBucket),
}

func (b *LandBuckets) DispBucketStr() []string {
	return b.dispBucketStr
}

func (b *LandBuckets) GetBucketByN(n int) *LandBucket {
	result, exist := b.dispBucketMap[n]
	if !exist {
		result = b.buldBucket(n)
	}
	return result
}

func (b *LandBuckets) buldBucket(n int) *LandBucket {
	// 最大總位移發生在整段反轉
	maxDisp := n * n / 2

	// 把「比例邊界」轉成「總位移邊界」，向上取整讓邊界落在區間左緣
	dispGp := make([]int, len(b.dispBucketPermille))
	for i, v := range b.dispBucketPermille {
		dispGp[i] = (v*maxDisp + 999) / 1000
	}

	// LUT 只建到上限，超出的總位移改走邊界掃描
	maxLut := maxDisp + 1
	if maxLut > maxLutTotal {
		maxLut = maxLutTotal
	}

	// 建立LUT反查表
	lut := make([]int, maxLut) // lut[disp] = idx

	// 由 (0,5%) 這個區間開始
	idx := 1
	last := len(dispGp)

	lut[0] = 0
	for i := 1; i < maxLut; i++ {
		// 僅在還有更高邊界時才前進 idx，避免越界讀取
		for idx < last && i >= dispGp[idx] {
			idx++
		}
		lut[i] = idx
	}

	result := &LandBucket{
		maxTotalDisp:      maxDisp,
		lutMaxDisp:        maxLut,
		dispBucketByTotal: dispGp,
		dispBucketLUT:     lut,
		topBoundary:       dispGp[len(dispGp)-1],
		maxIdx:            len(dispGp),
	}

	b.dispBucketMap[n] = result
	return result
}

func (lb *LandBucket) Index(disp int) int {
	if disp >= lb.lutMaxDisp {
		if disp >= lb.topBoundary {
			return lb.maxIdx
		}
		// 超出 LUT 但未達最高區間，邊界掃描最多走 len(dispBucketByTotal) 步
		idx := 1
		gp := lb.dispBucketByTotal
		for idx < len(gp) && disp >= gp[idx] {
			idx++
		}
		return idx
	}
	return lb.dispBucketLUT[disp]
}
