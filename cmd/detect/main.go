package main

import (
	"context"
	"flag"
	"fmt"
	"log"
	"os"
	"time"

	"github.com/disintegration/imaging"
	"github.com/joho/godotenv"

	"leaf_backend/internal/app/config"
	"leaf_backend/internal/app/di"
	"leaf_backend/internal/feature/detection/adapters/annotate"
	"leaf_backend/internal/feature/detection/domain/entity"
	"leaf_backend/internal/feature/detection/usecase"
)

// 1枚の画像をサーバーと同じモデル・プロファイル設定で推論し、描画結果を書き出します。
//
//	go run ./cmd/detect -in leaf.jpg -out detection_result.jpg
func main() {
	in := flag.String("in", "", "input image (JPEG or PNG)")
	out := flag.String("out", "", "annotated output path (default: profile download name)")
	flag.Parse()
	if *in == "" {
		flag.Usage()
		os.Exit(2)
	}

	if err := godotenv.Load(".env"); err != nil {
		log.Println("[INFO] .env not found; using system environment variables")
	}
	cfg, err := config.Load()
	if err != nil {
		log.Fatal(err)
	}
	if *out == "" {
		*out = cfg.Profile.DownloadName
	}

	ctx, cancel := context.WithTimeout(context.Background(), 5*time.Minute)
	defer cancel()

	model, err := usecase.NewCachedModel(di.NewModelLoader(ctx, cfg.ModelBackend)).Get()
	if err != nil {
		log.Fatal("failed to load detection model: ", err)
	}
	defer func() { _ = model.Close() }()

	img, err := imaging.Open(*in, imaging.AutoOrientation(true))
	if err != nil {
		log.Fatal(err)
	}

	th := cfg.Profile.EffectiveThresholds()
	dets, err := model.Predict(ctx, img, th)
	if err != nil {
		log.Fatal(err)
	}
	labels := model.Labels()
	kept := dets[:0]
	for _, d := range dets {
		if th.Admits(d, labels) {
			kept = append(kept, d)
		}
	}
	entity.SortByConfidence(kept)

	result := &entity.DetectionResult{Detections: kept, AnnotatedPath: *out}
	p := entity.Present(result, cfg.Profile)
	if p.Notice != "" {
		fmt.Println(p.Notice)
		return
	}

	data, err := annotate.NewBoxAnnotator().Annotate(img, kept)
	if err != nil {
		log.Fatal(err)
	}
	if err := os.WriteFile(*out, data, 0o644); err != nil {
		log.Fatal(err)
	}
	for _, d := range kept {
		fmt.Printf("%s\t%s\t(%d,%d)-(%d,%d)\n", d.Label, entity.FormatConfidence(d.Confidence), d.Box.X1, d.Box.Y1, d.Box.X2, d.Box.Y2)
	}
	log.Println("wrote", *out)
}
