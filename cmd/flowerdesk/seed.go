package main

import (
	"encoding/json"
	"fmt"
	"math"
	"math/rand/v2"
	"time"

	"github.com/spf13/cobra"

	"github.com/kalambet/flowerdesk/internal/config"
	"github.com/kalambet/flowerdesk/internal/storage"
)

var seedCatalog = []struct {
	category string
	items    []string
}{
	{"花卉", []string{"玫瑰", "郁金香", "兰花", "向日葵", "牡丹", "百合", "菊花", "茉莉", "康乃馨", "薰衣草"}},
	{"服装", []string{"T恤", "衬衫", "连衣裙", "牛仔裤", "夹克", "毛衣", "西装", "裙子", "短裤", "风衣"}},
	{"电子产品", []string{"智能手机", "平板电脑", "笔记本电脑", "耳机", "智能手表", "相机", "游戏机", "充电宝", "蓝牙音箱", "路由器"}},
	{"食品", []string{"巧克力", "饼干", "茶叶", "咖啡", "坚果", "蜂蜜", "罐头食品", "调味品", "面包", "糖果"}},
	{"家居用品", []string{"枕头", "被子", "床单", "毛巾", "餐具", "灯具", "地毯", "窗帘", "清洁剂", "收纳盒"}},
}

var seedVariants = []string{"A型", "B型", "C型", "D型", "E型"}

var seedCmd = &cobra.Command{
	Use:   "seed",
	Short: "Insert random inventory records for demos and testing",
	RunE: func(cmd *cobra.Command, args []string) error {
		n, _ := cmd.Flags().GetInt("count")
		seed, _ := cmd.Flags().GetUint64("seed")
		if n <= 0 {
			return fmt.Errorf("--count must be positive")
		}

		cfg, err := config.Load()
		if err != nil {
			return err
		}
		store, err := storage.Open(cfg.Storage.DataDir)
		if err != nil {
			return fmt.Errorf("opening storage: %w", err)
		}
		defer store.Close()

		if seed == 0 {
			seed = uint64(time.Now().UnixNano())
		}
		recs := seedRecords(rand.New(rand.NewPCG(seed, seed>>1)), n, time.Now())
		if err := store.InsertMany(cmd.Context(), recs); err != nil {
			return fmt.Errorf("inserting records: %w", err)
		}
		printSuccess("Inserted %d records into %s", n, cfg.Storage.DataDir)
		return nil
	},
}

func init() {
	seedCmd.Flags().IntP("count", "n", 100, "number of records")
	seedCmd.Flags().Uint64("seed", 0, "random seed (default: time based)")
}

// seedRecords builds n records stamped one minute apart, ending at now.
func seedRecords(r *rand.Rand, n int, now time.Time) []storage.InventoryRecord {
	recs := make([]storage.InventoryRecord, n)
	for i := range recs {
		recs[i] = storage.InventoryRecord{
			Timestamp: storage.Timestamp(now.Add(-time.Duration(n-1-i) * time.Minute)),
			Product:   seedProduct(r),
			Factors:   mustJSON(seedFactors(r)),
			Strategy:  mustJSON(seedStrategy(r)),
			Logistics: mustJSON(seedLogistics(r)),
		}
	}
	return recs
}

func seedProduct(r *rand.Rand) string {
	c := seedCatalog[r.IntN(len(seedCatalog))]
	return c.items[r.IntN(len(c.items))] + " " + pick(r, seedVariants...)
}

func seedFactors(r *rand.Rand) map[string]any {
	return map[string]any{
		"市场需求":  50 + r.IntN(451),
		"供应链效率": round2(0.5 + r.Float64()*0.5),
		"成本":    round2(10 + r.Float64()*90),
		"季节性":   pick(r, "高", "中", "低"),
	}
}

func seedStrategy(r *rand.Rand) map[string]string {
	switch r.IntN(4) {
	case 0:
		return map[string]string{"定价策略": pick(r, "竞争定价", "溢价定价", "折扣定价")}
	case 1:
		return map[string]string{"营销策略": pick(r, "线上广告", "社交媒体", "电子邮件营销", "搜索引擎优化")}
	case 2:
		return map[string]string{"分销策略": pick(r, "直销", "批发", "零售")}
	default:
		return map[string]string{"库存策略": pick(r, "即时库存", "批量库存", "代发货")}
	}
}

func seedLogistics(r *rand.Rand) map[string]any {
	return map[string]any{
		"仓库位置":    pick(r, "北京", "上海", "广州", "深圳", "成都"),
		"运输方式":    pick(r, "空运", "海运", "陆运", "铁路"),
		"交货时间（天）": 1 + r.IntN(30),
		"单位成本（元）": round2(10 + r.Float64()*190),
	}
}

func pick(r *rand.Rand, options ...string) string {
	return options[r.IntN(len(options))]
}

func round2(v float64) float64 {
	return math.Round(v*100) / 100
}

func mustJSON(v any) string {
	b, err := json.Marshal(v)
	if err != nil {
		panic(err)
	}
	return string(b)
}

