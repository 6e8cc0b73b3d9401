// talentsearchctl 是离线运维工具：
// 不经过HTTP层，直接驱动提取、解释和索引同步组件。
package main

import (
	"context"
	"encoding/json"
	"fmt"
	"os"
	"path/filepath"
	"strings"
	"time"

	"talent-search-go/internal/config"
	"talent-search-go/internal/extractor"
	"talent-search-go/internal/pipeline"
	"talent-search-go/internal/query"
	"talent-search-go/internal/search"
	"talent-search-go/internal/storage"
	"talent-search-go/internal/types"

	"github.com/spf13/pflag"
)

var (
	configPath = pflag.StringP("config", "c", "", "配置文件路径")
	filePath   = pflag.StringP("file", "f", "", "简历文件路径 (extract命令必填)")
	queryText  = pflag.StringP("query", "q", "", "查询文本 (interpret命令必填)")
	command    = pflag.String("cmd", "", "执行的命令: extract=提取简历, interpret=解析查询, sync=同步索引, drift=漂移统计")
)

func main() {
	pflag.Parse()

	var err error
	switch *command {
	case "extract":
		err = runExtract()
	case "interpret":
		err = runInterpret()
	case "sync":
		err = runSync()
	case "drift":
		err = runDrift()
	default:
		fmt.Printf("错误: 未知命令 '%s'。支持的命令: extract, interpret, sync, drift\n", *command)
		pflag.Usage()
		os.Exit(1)
	}
	if err != nil {
		fmt.Fprintf(os.Stderr, "执行失败: %v\n", err)
		os.Exit(1)
	}
}

// runExtract 对单个简历文件执行文本提取和结构化抽取，结果打到标准输出
func runExtract() error {
	if *filePath == "" {
		return fmt.Errorf("extract 命令需要 --file 参数")
	}
	cfg, err := config.LoadConfig(*configPath)
	if err != nil {
		return err
	}

	data, err := os.ReadFile(*filePath)
	if err != nil {
		return fmt.Errorf("读取简历文件失败: %w", err)
	}

	ctx := context.Background()
	resumeExtractor, err := buildExtractor(ctx, cfg)
	if err != nil {
		return err
	}

	format := strings.TrimPrefix(strings.ToLower(filepath.Ext(*filePath)), ".")
	extracted, err := resumeExtractor.Extract(ctx, data, format)
	if err != nil {
		return err
	}
	return printJSON(extracted)
}

// runInterpret 把自由文本查询解析为结构化意图
func runInterpret() error {
	if *queryText == "" {
		return fmt.Errorf("interpret 命令需要 --query 参数")
	}
	intent, err := query.NewInterpreter().Interpret(*queryText)
	if err != nil {
		return err
	}
	return printJSON(intent)
}

// runSync 拉取所有未入索引的候选人，跑一轮完整的批处理流水线
func runSync() error {
	cfg, err := config.LoadConfig(*configPath)
	if err != nil {
		return err
	}

	ctx := context.Background()
	storageManager, err := storage.NewStorage(ctx, cfg)
	if err != nil {
		return err
	}
	defer storageManager.Close()
	if storageManager.MySQL == nil || storageManager.MinIO == nil {
		return fmt.Errorf("sync 命令需要配置 MySQL 和 MinIO")
	}

	searchClient, err := search.NewClient(&cfg.Search)
	if err != nil {
		return err
	}
	synchronizer, err := search.NewSynchronizer(searchClient, storageManager.MySQL)
	if err != nil {
		return err
	}
	resumeExtractor, err := buildExtractor(ctx, cfg)
	if err != nil {
		return err
	}

	opts := []pipeline.PipelineOption{pipeline.WithConcurrency(cfg.Pipeline.Concurrency)}
	if storageManager.Redis != nil {
		opts = append(opts, pipeline.WithDeduper(storageManager.Redis))
	}
	batchPipeline, err := pipeline.NewPipeline(storageManager.MinIO, resumeExtractor, synchronizer, opts...)
	if err != nil {
		return err
	}

	candidates, err := storageManager.MySQL.ListUnsyncedCandidates(ctx, 1000)
	if err != nil {
		return err
	}
	if len(candidates) == 0 {
		fmt.Println("没有待同步的候选人")
		return nil
	}

	items := make([]types.BatchItem, 0, len(candidates))
	for _, candidate := range candidates {
		items = append(items, types.BatchItem{
			CandidateID:     candidate.CandidateID,
			ResumeObjectKey: candidate.ResumeObjectKey,
		})
	}

	result, err := batchPipeline.Run(ctx, items)
	if err != nil {
		return err
	}
	if storageManager.Redis != nil && result.Succeeded > 0 {
		if err := storageManager.Redis.SetLastIndexSync(ctx, time.Now()); err != nil {
			fmt.Fprintf(os.Stderr, "记录同步时间失败: %v\n", err)
		}
	}
	return printJSON(result)
}

// runDrift 打印文档存储与搜索索引之间的漂移统计
func runDrift() error {
	cfg, err := config.LoadConfig(*configPath)
	if err != nil {
		return err
	}

	ctx := context.Background()
	storageManager, err := storage.NewStorage(ctx, cfg)
	if err != nil {
		return err
	}
	defer storageManager.Close()
	if storageManager.MySQL == nil {
		return fmt.Errorf("drift 命令需要配置 MySQL")
	}

	searchClient, err := search.NewClient(&cfg.Search)
	if err != nil {
		return err
	}
	synchronizer, err := search.NewSynchronizer(searchClient, storageManager.MySQL)
	if err != nil {
		return err
	}

	stats, err := synchronizer.DriftStats(ctx)
	if err != nil {
		return err
	}
	if storageManager.Redis != nil {
		if at, err := storageManager.Redis.GetLastIndexSync(ctx); err == nil && !at.IsZero() {
			stats.LastSyncedAt = &at
		}
	}
	return printJSON(stats)
}

// buildExtractor 按配置组装文本提取链路，CLI场景不启用LLM提取
func buildExtractor(ctx context.Context, cfg *config.Config) (*extractor.ResumeExtractor, error) {
	var textExtractor extractor.TextExtractor
	if cfg.Extractor.Type == "tika" && cfg.Extractor.TikaServerURL != "" {
		var tikaOpts []extractor.TikaOption
		if cfg.Extractor.TimeoutSeconds > 0 {
			tikaOpts = append(tikaOpts, extractor.WithTikaTimeout(time.Duration(cfg.Extractor.TimeoutSeconds)*time.Second))
		}
		textExtractor = extractor.NewTikaExtractor(cfg.Extractor.TikaServerURL, tikaOpts...)
	} else {
		einoExtractor, err := extractor.NewEinoPDFExtractor(ctx)
		if err != nil {
			return nil, err
		}
		textExtractor = einoExtractor
	}
	return extractor.NewResumeExtractor(textExtractor)
}

func printJSON(v interface{}) error {
	data, err := json.MarshalIndent(v, "", "  ")
	if err != nil {
		return err
	}
	fmt.Println(string(data))
	return nil
}
