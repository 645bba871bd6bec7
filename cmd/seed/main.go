// cmd/seed/main.go
// Loads a demo data set (races, entries, notices, features) into the local
// PostgreSQL database. Safe to re-run: existing rows are left alone.
//
// Usage:
//
//	go run ./cmd/seed
package main

import (
	"context"
	"fmt"
	"log"

	"github.com/uptrace/bun"

	"github.com/takigawalab/indexapi/catalog"
	"github.com/takigawalab/indexapi/config"
	bundb "github.com/takigawalab/indexapi/db"
	"github.com/takigawalab/indexapi/models"
)

func main() {
	ctx := context.Background()

	cfg := config.Load()
	pgDB := bundb.Setup(cfg)
	defer pgDB.Close()

	if err := bundb.CreateTables(ctx, pgDB); err != nil {
		log.Fatalf("create tables: %v", err)
	}

	steps := []struct {
		name string
		fn   func() (int, error)
	}{
		{"races", func() (int, error) { return seedRaces(ctx, pgDB) }},
		{"notices", func() (int, error) { return seedNotices(ctx, pgDB) }},
		{"features", func() (int, error) { return seedFeatures(ctx, pgDB) }},
	}

	for _, s := range steps {
		n, err := s.fn()
		if err != nil {
			log.Fatalf("seed %s: %v", s.name, err)
		}
		log.Printf("%-10s  %d rows", s.name, n)
	}

	resetSequences(ctx, pgDB)
	log.Println("seed complete")
}

func ptr[T any](v T) *T { return &v }

// bulkInsert inserts a batch, skipping rows that already exist.
func bulkInsert[T any](ctx context.Context, pgDB *bun.DB, rows []T) error {
	if len(rows) == 0 {
		return nil
	}
	_, err := pgDB.NewInsert().Model(&rows).On("CONFLICT DO NOTHING").Exec(ctx)
	return err
}

type seedHorse struct {
	number     int
	name       string
	age        int
	sex        string
	weight     int
	jockey     string
	trainer    string
	odds       float64
	popularity int
}

type seedRace struct {
	race   models.Race
	horses []seedHorse
}

func demoRaces() []seedRace {
	return []seedRace{
		{
			race: models.Race{
				RaceDate: "2024-06-23", Venue: "東京", RaceNumber: 11,
				RaceName: "宝塚記念トライアル", RaceType: "芝", Distance: 2200,
				PostTime: "15:40", GradeClass: ptr(models.GradeG2),
				PrizeFirst: ptr(6200), PointCost: 500,
				IsPublished: true, ShowOnTop: true, TopOrder: ptr(1),
			},
			horses: []seedHorse{
				{1, "サンライズホープ", 4, "牡", 480, "横山武史", "鹿戸雄一", 2.5, 1},
				{2, "ミラクルスター", 5, "牡", 476, "福永祐一", "国枝栄", 5.2, 2},
				{3, "ゴールデンウェーブ", 4, "牝", 452, "川田将雅", "友道康夫", 7.8, 3},
				{4, "シルバーアロー", 6, "セ", 488, "戸崎圭太", "堀宣行", 12.4, 5},
				{5, "レッドファルコン", 4, "牡", 470, "ルメール", "藤沢和雄", 9.1, 4},
			},
		},
		{
			race: models.Race{
				RaceDate: "2024-06-23", Venue: "阪神", RaceNumber: 10,
				RaceName: "マーメイドステークス", RaceType: "芝", Distance: 2000,
				PostTime: "15:10", GradeClass: ptr(models.GradeG3),
				PrizeFirst: ptr(4100), PointCost: 300,
				IsPublished: true, ShowOnTop: true, TopOrder: ptr(2),
			},
			horses: []seedHorse{
				{1, "ブルームーン", 5, "牝", 458, "武豊", "中内田充正", 3.1, 1},
				{2, "ハヤテノゴトク", 4, "牝", 444, "岩田望来", "矢作芳人", 6.6, 3},
				{3, "コスモフラッシュ", 6, "牝", 462, "松山弘平", "音無秀孝", 4.9, 2},
			},
		},
		{
			race: models.Race{
				RaceDate: "2024-06-23", Venue: "東京", RaceNumber: 5,
				RaceName: "3歳未勝利", RaceType: "ダート", Distance: 1400,
				PostTime: "12:10", IsFree: true,
				IsPublished: true,
			},
			horses: []seedHorse{
				{1, "フリームーン", 3, "牡", 466, "三浦皇成", "加藤征弘", 2.2, 1},
				{2, "キタノライデン", 3, "牡", 472, "田辺裕信", "小島茂之", 8.0, 4},
				{3, "マイネルブレイブ", 3, "牡", 460, "津村明秀", "相沢郁", 5.5, 2},
			},
		},
		{
			race: models.Race{
				RaceDate: "2024-06-30", Venue: "中京", RaceNumber: 11,
				RaceName: "CBC賞", RaceType: "芝", Distance: 1200,
				PostTime: "15:35", GradeClass: ptr(models.GradeG3),
				PrizeFirst: ptr(4100), PointCost: 300,
			},
			horses: []seedHorse{
				{1, "スプリントキング", 5, "牡", 492, "坂井瑠星", "安田隆行", 3.8, 1},
				{2, "ウインドダンサー", 4, "牝", 450, "幸英明", "本田優", 11.2, 5},
			},
		},
	}
}

func seedRaces(ctx context.Context, pgDB *bun.DB) (int, error) {
	total := 0
	for _, sr := range demoRaces() {
		r := sr.race
		res, err := pgDB.NewInsert().Model(&r).On("CONFLICT DO NOTHING").Exec(ctx)
		if err != nil {
			return total, err
		}
		if n, _ := res.RowsAffected(); n == 0 {
			continue // already seeded
		}
		total++

		horses := make([]models.Horse, 0, len(sr.horses))
		for _, sh := range sr.horses {
			h := models.Horse{
				RaceID:      r.ID,
				HorseNumber: sh.number,
				HorseName:   sh.name,
				Age:         sh.age,
				Sex:         sh.sex,
				Weight:      sh.weight,
				Jockey:      sh.jockey,
				Trainer:     sh.trainer,
				Odds:        ptr(sh.odds),
				Popularity:  ptr(sh.popularity),
			}
			h.Index = catalog.ComputeIndex(&h)
			horses = append(horses, h)
		}
		if err := bulkInsert(ctx, pgDB, horses); err != nil {
			return total, err
		}
	}
	return total, nil
}

func seedNotices(ctx context.Context, pgDB *bun.DB) (int, error) {
	notices := []models.Notice{
		{
			Title: "オープン記念キャンペーン実施中", Type: models.NoticeCampaign,
			Content: "期間中のポイント購入で10%増量。詳細はマイページをご覧ください。",
			IsNew:   true, IsPublished: true,
		},
		{
			Title: "メンテナンスのお知らせ", Type: models.NoticeMaintenance,
			Content:     "6月25日 2:00-5:00 の間、サービスを一時停止します。",
			IsPublished: true,
		},
		{
			Title: "指数アルゴリズムを更新しました", Type: models.NoticeUpdate,
			Content:     "馬体重の増減をより強く反映するようになりました。",
			IsPublished: true,
		},
	}
	if err := bulkInsert(ctx, pgDB, notices); err != nil {
		return 0, err
	}
	return len(notices), nil
}

func seedFeatures(ctx context.Context, pgDB *bun.DB) (int, error) {
	features := []models.Feature{
		{
			Icon: "Trophy", Title: "独自指数でレースを分析",
			Description: "オッズ・人気・馬体重から算出した指数で全出走馬をランク付け。",
			Order:       1, IsPublished: true,
		},
		{
			Icon: "TrendingUp", Title: "ポイント制で必要な分だけ",
			Description: "月額課金なし。見たいレースだけポイントで解放できます。",
			Order:       2, IsPublished: true,
		},
		{
			Icon: "Bell", Title: "LINEで最新情報をお届け",
			Description: "友だち追加で100ポイントプレゼント。重賞の公開をすぐ通知します。",
			Order:       3, IsPublished: true,
		},
	}
	if err := bulkInsert(ctx, pgDB, features); err != nil {
		return 0, err
	}
	return len(features), nil
}

// resetSequences advances each PG sequence to MAX(id) so new inserts don't conflict.
func resetSequences(ctx context.Context, pgDB *bun.DB) {
	seqs := []struct{ seq, table string }{
		{"races_id_seq", "races"},
		{"horses_id_seq", "horses"},
		{"notices_id_seq", "notices"},
		{"features_id_seq", "features"},
	}
	for _, s := range seqs {
		q := fmt.Sprintf(
			"SELECT setval('%s', COALESCE((SELECT MAX(id) FROM %s), 1))",
			s.seq, s.table,
		)
		if _, err := pgDB.ExecContext(ctx, q); err != nil {
			log.Printf("reset seq %s: %v", s.seq, err)
		}
	}
	log.Println("sequences reset")
}
