package main

import (
	"flag"
	"fmt"
	"log"
	"math"
	"os"
	"sort"

	"load_forecaster/internal/ingest"
	"load_forecaster/internal/model"
)

type dayPeak struct {
	date   string
	peakKW float64
	avgKW  float64
	count  int
}

func main() {
	datasetPath := flag.String("dataset", "data/smart_grid_dataset.csv", "path to smart grid dataset CSV")
	lowPF := flag.Float64("low-pf", 0.85, "power factor threshold for the low-PF report")
	peakDays := flag.Int("peak-days", 10, "number of daily peak rows to print")
	flag.Parse()

	readings := loadReadings(*datasetPath)
	if len(readings) == 0 {
		log.Fatal("No readings loaded")
	}

	first := readings[0].Timestamp
	last := readings[len(readings)-1].Timestamp
	days := last.Sub(first).Hours() / 24

	fmt.Println()
	fmt.Println("Grid Efficiency Analysis")
	fmt.Printf("  Data: %s to %s (%.0f days, %d readings)\n",
		first.Format("2006-01-02"), last.Format("2006-01-02"), days, len(readings))
	fmt.Println()

	printEfficiency(readings, *lowPF)
	fmt.Println()
	printDailyPeaks(readings, *peakDays)
	fmt.Println()
	printHourlyLoad(readings)
	fmt.Println()
}

func printEfficiency(readings []model.Reading, lowPF float64) {
	var pfSum, apparentSum, voltSum float64
	var lowCount int
	for _, r := range readings {
		pfSum += r.PowerFactor
		// Apparent power S = sqrt(P^2 + Q^2)
		apparentSum += math.Sqrt(r.PowerKW*r.PowerKW + r.ReactivePower*r.ReactivePower)
		voltSum += r.Voltage
		if r.PowerFactor < lowPF {
			lowCount++
		}
	}
	n := float64(len(readings))
	voltMean := voltSum / n

	var voltVar float64
	for _, r := range readings {
		d := r.Voltage - voltMean
		voltVar += d * d
	}
	voltStd := math.Sqrt(voltVar / (n - 1))

	fmt.Println("=== Efficiency ===")
	fmt.Printf("  Average power factor:         %.3f\n", pfSum/n)
	fmt.Printf("  Low PF (<%.2f) occurrence:    %.2f%%\n", lowPF, float64(lowCount)/n*100)
	fmt.Printf("  Average apparent power (kVA): %.3f\n", apparentSum/n)
	fmt.Printf("  Average voltage (V):          %.2f\n", voltMean)
	fmt.Printf("  Voltage std dev (V):          %.3f\n", voltStd)
}

func printDailyPeaks(readings []model.Reading, limit int) {
	byDay := make(map[string]*dayPeak)
	for _, r := range readings {
		key := r.Timestamp.Format("2006-01-02")
		d, ok := byDay[key]
		if !ok {
			d = &dayPeak{date: key, peakKW: math.Inf(-1)}
			byDay[key] = d
		}
		if r.PowerKW > d.peakKW {
			d.peakKW = r.PowerKW
		}
		d.avgKW += r.PowerKW
		d.count++
	}

	peaks := make([]dayPeak, 0, len(byDay))
	for _, d := range byDay {
		d.avgKW /= float64(d.count)
		peaks = append(peaks, *d)
	}
	sort.Slice(peaks, func(i, j int) bool { return peaks[i].date < peaks[j].date })
	if len(peaks) > limit {
		peaks = peaks[:limit]
	}

	fmt.Printf("=== Daily Peak Load (first %d days) ===\n", len(peaks))
	fmt.Printf("   %10s │ %8s │ %8s\n", "Date", "Peak kW", "Avg kW")
	fmt.Printf("  ────────────┼──────────┼──────────\n")
	for _, d := range peaks {
		fmt.Printf("   %10s │ %8.2f │ %8.2f\n", d.date, d.peakKW, d.avgKW)
	}
}

func printHourlyLoad(readings []model.Reading) {
	var kwSum [24]float64
	var counts [24]int
	var total float64
	for _, r := range readings {
		h := r.Timestamp.Hour()
		kwSum[h] += r.PowerKW
		counts[h]++
		total += r.PowerKW
	}

	// Find the heaviest hour
	var maxHour int
	var maxAvg float64
	for h := 0; h < 24; h++ {
		if counts[h] == 0 {
			continue
		}
		if avg := kwSum[h] / float64(counts[h]); avg > maxAvg {
			maxAvg = avg
			maxHour = h
		}
	}

	fmt.Println("=== Hourly Load Distribution ===")
	fmt.Printf("   %4s │ %8s │ %5s\n", "Hour", "Avg kW", "Share")
	fmt.Printf("  ──────┼──────────┼──────\n")
	for h := 0; h < 24; h++ {
		if counts[h] == 0 {
			continue
		}
		avg := kwSum[h] / float64(counts[h])
		share := kwSum[h] / total * 100
		marker := ""
		if h == maxHour {
			marker = " ← peak"
		}
		fmt.Printf("     %02d │ %8.2f │ %4.1f%%%s\n", h, avg, share, marker)
	}
}

func loadReadings(path string) []model.Reading {
	f, err := os.Open(path)
	if err != nil {
		log.Fatalf("Opening %s: %v", path, err)
	}
	defer f.Close()

	parser := &ingest.SmartGridParser{}
	readings, err := parser.Parse(f)
	if err != nil {
		log.Fatalf("Parsing %s: %v", path, err)
	}
	return readings
}
