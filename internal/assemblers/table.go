package assemblers

import "github.com/StinkyLord/sbom-assembler/internal/model"

// Table is the built-in assembler database. Datasource ids that appear in no
// entry (os-release files, readmes, archives) are never assembled.
var Table = []Config{
	// Sibling merge: a manifest and its lockfiles in one directory.
	{
		Key: "npm",
		DatasourceIDs: []model.DatasourceID{
			model.NpmPackageJson,
			model.NpmPackageLockJson,
			model.YarnLock,
			model.PnpmLockYaml,
			model.PnpmWorkspaceYaml,
		},
		Mode: SiblingMerge,
		Patterns: siblings(
			"package.json",
			"package-lock.json",
			"npm-shrinkwrap.json",
			"yarn.lock",
			"pnpm-lock.yaml",
			"pnpm-workspace.yaml",
		),
		PackageType: "npm",
	},
	{
		Key:           "cargo",
		DatasourceIDs: []model.DatasourceID{model.CargoToml, model.CargoLock},
		Mode:          SiblingMerge,
		Patterns:      siblings("Cargo.toml", "Cargo.lock"),
		PackageType:   "cargo",
	},
	{
		Key: "cocoapods",
		DatasourceIDs: []model.DatasourceID{
			model.CocoapodsPodspec,
			model.CocoapodsPodspecJson,
			model.CocoapodsPodfile,
			model.CocoapodsPodfileLock,
		},
		Mode:        SiblingMerge,
		Patterns:    siblings("*.podspec", "*.podspec.json", "Podfile", "Podfile.lock"),
		PackageType: "cocoapods",
	},
	{
		Key:           "composer",
		DatasourceIDs: []model.DatasourceID{model.PhpComposerJson, model.PhpComposerLock},
		Mode:          SiblingMerge,
		Patterns:      siblings("composer.json", "composer.lock"),
		PackageType:   "composer",
	},
	{
		Key:           "golang",
		DatasourceIDs: []model.DatasourceID{model.GoMod, model.GoSum, model.Godeps},
		Mode:          SiblingMerge,
		Patterns:      siblings("go.mod", "go.sum", "Godeps.json"),
		PackageType:   "golang",
	},
	{
		Key:           "pub",
		DatasourceIDs: []model.DatasourceID{model.PubspecYaml, model.PubspecLock},
		Mode:          SiblingMerge,
		Patterns:      siblings("pubspec.yaml", "pubspec.lock"),
		PackageType:   "pub",
	},
	{
		Key:           "chef",
		DatasourceIDs: []model.DatasourceID{model.ChefCookbookMetadataJson, model.ChefCookbookMetadataRb},
		Mode:          SiblingMerge,
		Patterns:      siblings("metadata.json", "metadata.rb"),
		PackageType:   "chef",
	},
	{
		Key: "conan",
		DatasourceIDs: []model.DatasourceID{
			model.ConanConanFilePy,
			model.ConanConanFileTxt,
			model.ConanLock,
			model.ConanConanDataYml,
		},
		Mode:        SiblingMerge,
		Patterns:    siblings("conanfile.py", "conanfile.txt", "conan.lock", "conandata.yml"),
		PackageType: "conan",
	},
	{
		Key: "pypi",
		DatasourceIDs: []model.DatasourceID{
			model.PypiPyprojectToml,
			model.PypiSetupPy,
			model.PypiSetupCfg,
			model.PypiWheel,
			model.PypiEgg,
			model.PipRequirements,
			model.PypiPoetryLock,
			model.Pipfile,
			model.PipfileLock,
		},
		Mode: SiblingMerge,
		Patterns: siblings(
			"pyproject.toml",
			"setup.py",
			"setup.cfg",
			"requirements*.txt",
			"Pipfile",
			"Pipfile.lock",
			"poetry.lock",
		),
		PackageType: "pypi",
	},
	{
		Key:           "gem",
		DatasourceIDs: []model.DatasourceID{model.Gemspec, model.Gemfile, model.GemfileLock, model.GemArchive},
		Mode:          SiblingMerge,
		Patterns:      siblings("*.gemspec", "Gemfile", "Gemfile.lock"),
		PackageType:   "gem",
	},
	{
		Key:           "conda",
		DatasourceIDs: []model.DatasourceID{model.CondaMetaYaml, model.CondaYaml, model.CondaMetaJson},
		Mode:          SiblingMerge,
		Patterns:      siblings("meta.yaml", "environment.yml"),
		PackageType:   "conda",
	},
	{
		Key:           "rpm-specfile",
		DatasourceIDs: []model.DatasourceID{model.RpmSpecfile},
		Mode:          SiblingMerge,
		Patterns:      siblings("*.spec"),
		PackageType:   "rpm",
	},
	{
		Key:           "gradle",
		DatasourceIDs: []model.DatasourceID{model.BuildGradle, model.GradleLockfile},
		Mode:          SiblingMerge,
		Patterns:      siblings("build.gradle", "build.gradle.kts", "gradle.lockfile"),
		PackageType:   "maven",
	},
	{
		Key: "cpan",
		DatasourceIDs: []model.DatasourceID{
			model.CpanMetaJson,
			model.CpanMetaYml,
			model.CpanManifest,
			model.CpanDistIni,
			model.CpanMakefile,
		},
		Mode:        SiblingMerge,
		Patterns:    siblings("META.json", "META.yml", "MANIFEST", "dist.ini", "Makefile.PL"),
		PackageType: "cpan",
	},
	{
		Key: "nuget",
		DatasourceIDs: []model.DatasourceID{
			model.NugetNuspec,
			model.NugetNupkg,
			model.NugetPackagesConfig,
			model.NugetPackagesLock,
		},
		Mode:        SiblingMerge,
		Patterns:    siblings("*.nuspec", "*.nupkg", "packages.config", "packages.lock.json"),
		PackageType: "nuget",
	},
	{
		Key:           "swift",
		DatasourceIDs: []model.DatasourceID{model.SwiftPackageManifestJson, model.SwiftPackageResolved},
		Mode:          SiblingMerge,
		Patterns:      siblings("Package.swift", "Package.resolved"),
		PackageType:   "swift",
	},

	// Single-file manifests still need an entry to be assembled at all.
	{Key: "bower", DatasourceIDs: []model.DatasourceID{model.BowerJson}, Mode: SiblingMerge, Patterns: siblings("bower.json"), PackageType: "bower"},
	{Key: "cran", DatasourceIDs: []model.DatasourceID{model.CranDescription}, Mode: SiblingMerge, Patterns: siblings("DESCRIPTION"), PackageType: "cran"},
	{Key: "freebsd", DatasourceIDs: []model.DatasourceID{model.FreebsdCompactManifest}, Mode: SiblingMerge, Patterns: siblings("+COMPACT_MANIFEST"), PackageType: "freebsd"},
	{Key: "haxe", DatasourceIDs: []model.DatasourceID{model.HaxelibJson}, Mode: SiblingMerge, Patterns: siblings("haxelib.json"), PackageType: "haxe"},
	{Key: "opam", DatasourceIDs: []model.DatasourceID{model.OpamFile}, Mode: SiblingMerge, Patterns: siblings("opam"), PackageType: "opam"},
	{Key: "rpm-mariner", DatasourceIDs: []model.DatasourceID{model.RpmMarinerManifest}, Mode: SiblingMerge, Patterns: siblings("*.rpm.manifest"), PackageType: "rpm"},
	{Key: "windows-update", DatasourceIDs: []model.DatasourceID{model.MicrosoftUpdateMum}, Mode: SiblingMerge, Patterns: siblings("*.mum"), PackageType: "windows-update"},

	// Nested merge: metadata several levels below the package root.
	{
		Key:           "maven",
		DatasourceIDs: []model.DatasourceID{model.MavenPom, model.JavaJarManifest, model.JavaOsgiManifest},
		Mode:          NestedMerge,
		Patterns: []Pattern{
			{Glob: "**/META-INF/maven/*/*/pom.xml", AnchorLevelsUp: 4},
			{Glob: "pom.xml", AnchorLevelsUp: 0},
			{Glob: "**/META-INF/MANIFEST.MF", AnchorLevelsUp: 1},
		},
		PackageType: "maven",
	},
	{
		Key:           "debian-source",
		DatasourceIDs: []model.DatasourceID{model.DebianControlInSource, model.DebianCopyright},
		Mode:          NestedMerge,
		Patterns: []Pattern{
			{Glob: "**/debian/control", AnchorLevelsUp: 1},
			{Glob: "**/debian/copyright", AnchorLevelsUp: 1},
		},
		PackageType: "deb",
	},

	// One package per record: installed-package databases.
	{
		Key:           "alpine-installed",
		DatasourceIDs: []model.DatasourceID{model.AlpineInstalledDb},
		Mode:          OnePerRecord,
		Patterns:      siblings("installed"),
		PackageType:   "alpine",
		DBPathSuffix: map[model.DatasourceID]string{
			model.AlpineInstalledDb: "lib/apk/db/installed",
		},
	},
	{
		Key: "rpm-installed",
		DatasourceIDs: []model.DatasourceID{
			model.RpmInstalledDatabaseBdb,
			model.RpmInstalledDatabaseNdb,
			model.RpmInstalledDatabaseSqlite,
		},
		Mode:        OnePerRecord,
		Patterns:    siblings("Packages", "Packages.db", "rpmdb.sqlite"),
		PackageType: "rpm",
		DBPathSuffix: map[model.DatasourceID]string{
			model.RpmInstalledDatabaseBdb:    "var/lib/rpm/Packages",
			model.RpmInstalledDatabaseNdb:    "usr/lib/sysimage/rpm/Packages.db",
			model.RpmInstalledDatabaseSqlite: "usr/lib/sysimage/rpm/rpmdb.sqlite",
		},
		NamespaceFromOSRelease: true,
	},
	{
		Key:           "debian-installed",
		DatasourceIDs: []model.DatasourceID{model.DebianInstalledStatusDb, model.DebianDistrolessInstalledDb},
		Mode:          OnePerRecord,
		Patterns:      siblings("status", "*"),
		PackageType:   "deb",
		DBPathSuffix: map[model.DatasourceID]string{
			model.DebianInstalledStatusDb:     "var/lib/dpkg/status",
			model.DebianDistrolessInstalledDb: "var/lib/dpkg/status.d/",
		},
	},
}

func siblings(globs ...string) []Pattern {
	out := make([]Pattern, len(globs))
	for i, g := range globs {
		out[i] = Pattern{Glob: g}
	}
	return out
}
