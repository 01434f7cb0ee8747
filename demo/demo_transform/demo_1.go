package demo_transform

import (
	"github.com/zintix-labs/shufflelab/sdk/buf"
	"github.com/zintix-labs/shufflelab/sdk/elitist"
)

// ============================================================
// ** 註冊 **
// ============================================================

func init() {
	elitist.TransformRegister[*buf.NoExtend](
		"demo_floor",
		buildTf0001,
		Transforms,
	)
}

// ============================================================
// ** 轉換介面 **
// ============================================================

type tf0001 struct {
	fixed *fixed0001
}

func buildTf0001(e *elitist.Engine) (elitist.Transform, error) {
	t1 := &tf0001{
		fixed: &fixed0001{
			floor: 0.05,
		},
	}
	return t1, nil
}

// UniformAtZero 冪次 0 時斜坡全為 1, 保底不起作用, 可走快路徑。
func (t *tf0001) UniformAtZero() bool { return true }

// ============================================================
// ** 此轉換需要的額外結構宣告: Fixed設定宣告 **
// ============================================================

type fixed0001 struct {
	floor float64
}

// ============================================================
// ** 轉換主邏輯入口 **
// ============================================================

// Weights 主要介面函數 先套用斜坡冪次, 再以保底權重墊高尾端
//
// 頭部權重固定為 1, 因此 floor 直接代表「尾端至少保有頭部幾成的曝光」。
func (t *tf0001) Weights(dst []float64, n int, inequality float64) []float64 {
	dst = elitist.RampWeightsInto(dst, n, inequality)

	f := t.fixed.floor
	for i, w := range dst {
		if w < f {
			dst[i] = f
		}
	}
	return dst
}
