package logger

import "github.com/ideamans/go-l10n"

func init() {
	l10n.Register("ja", l10n.LexiconMap{
		// CLI level messages
		"Rendering %d frames to %s...":  "%d フレームを %s にレンダリング中...",
		"Output saved to %s":            "出力を %s に保存しました",
		"Interrupted, cancelling...":    "中断されました。キャンセル中...",
		"No images found in %s":         "%s に画像が見つかりません",

		// Planning
		"Planned %d frames, %.2fs total": "%d フレームを計画しました (合計 %.2f 秒)",

		// Encoding
		"Encoded %d frames to %s":                       "%d フレームを %s にエンコードしました",
		"Encoded %d/%d frames (%d bytes)":               "%d/%d フレームをエンコードしました (%d バイト)",
		"Encoded %d/%d frames (%d bytes, ~%s remaining)": "%d/%d フレームをエンコードしました (%d バイト、残り約 %s)",
		"Skipped %d undecodable frames":                 "デコードできないフレーム %d 件をスキップしました",
		"Skipping undecodable frame %d: %s":             "デコードできないフレーム %d をスキップ: %s",
		"Generation cancelled, partial output removed":  "生成がキャンセルされ、部分出力を削除しました",

		// Warnings / errors
		"Failed to remove partial output %s: %s": "部分出力 %s の削除に失敗しました: %s",
		"Generation failed: %s":                  "生成に失敗しました: %s",
	})
}
