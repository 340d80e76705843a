package model

// DatasourceID identifies the parser/format that produced an ExtractedRecord
// (e.g. "npm_package_json" vs "npm_package_lock_json").
type DatasourceID string

// Known datasource identifiers. Only the ones the assembler table refers to
// are listed; parsers may emit others, which are left unassembled.
const (
	// npm / yarn / pnpm
	NpmPackageJson     DatasourceID = "npm_package_json"
	NpmPackageLockJson DatasourceID = "npm_package_lock_json"
	YarnLock           DatasourceID = "yarn_lock"
	PnpmLockYaml       DatasourceID = "pnpm_lock_yaml"
	PnpmWorkspaceYaml  DatasourceID = "pnpm_workspace_yaml"

	// Rust
	CargoToml DatasourceID = "cargo_toml"
	CargoLock DatasourceID = "cargo_lock"

	// CocoaPods
	CocoapodsPodspec     DatasourceID = "cocoapods_podspec"
	CocoapodsPodspecJson DatasourceID = "cocoapods_podspec_json"
	CocoapodsPodfile     DatasourceID = "cocoapods_podfile"
	CocoapodsPodfileLock DatasourceID = "cocoapods_podfile_lock"

	// PHP
	PhpComposerJson DatasourceID = "php_composer_json"
	PhpComposerLock DatasourceID = "php_composer_lock"

	// Go
	GoMod  DatasourceID = "go_mod"
	GoSum  DatasourceID = "go_sum"
	Godeps DatasourceID = "godeps"

	// Dart
	PubspecYaml DatasourceID = "pubspec_yaml"
	PubspecLock DatasourceID = "pubspec_lock"

	// Chef
	ChefCookbookMetadataJson DatasourceID = "chef_cookbook_metadata_json"
	ChefCookbookMetadataRb   DatasourceID = "chef_cookbook_metadata_rb"

	// Conan
	ConanConanFilePy  DatasourceID = "conan_conanfile_py"
	ConanConanFileTxt DatasourceID = "conan_conanfile_txt"
	ConanLock         DatasourceID = "conan_lock"
	ConanConanDataYml DatasourceID = "conan_conandata_yml"

	// Java / Maven
	MavenPom         DatasourceID = "maven_pom"
	JavaJarManifest  DatasourceID = "java_jar_manifest"
	JavaOsgiManifest DatasourceID = "java_osgi_manifest"

	// Python
	PypiPyprojectToml DatasourceID = "pypi_pyproject_toml"
	PypiSetupPy       DatasourceID = "pypi_setup_py"
	PypiSetupCfg      DatasourceID = "pypi_setup_cfg"
	PipRequirements   DatasourceID = "pip_requirements"
	PypiPoetryLock    DatasourceID = "pypi_poetry_lock"
	Pipfile           DatasourceID = "pipfile"
	PipfileLock       DatasourceID = "pipfile_lock"
	PypiWheel         DatasourceID = "pypi_wheel"
	PypiEgg           DatasourceID = "pypi_egg"

	// Ruby
	Gemspec     DatasourceID = "gemspec"
	Gemfile     DatasourceID = "gemfile"
	GemfileLock DatasourceID = "gemfile_lock"
	GemArchive  DatasourceID = "gem_archive"

	// Perl
	CpanMetaJson DatasourceID = "cpan_meta_json"
	CpanMetaYml  DatasourceID = "cpan_meta_yml"
	CpanManifest DatasourceID = "cpan_manifest"
	CpanDistIni  DatasourceID = "cpan_dist_ini"
	CpanMakefile DatasourceID = "cpan_makefile"

	// RPM source packages. The misspelling is the established wire value.
	RpmSpecfile DatasourceID = "rpm_spefile"

	// Conda
	CondaMetaYaml DatasourceID = "conda_meta_yaml"
	CondaMetaJson DatasourceID = "conda_meta_json"
	CondaYaml     DatasourceID = "conda_yaml"

	// Debian source packages
	DebianControlInSource DatasourceID = "debian_control_in_source"
	DebianCopyright       DatasourceID = "debian_copyright"

	// Gradle
	BuildGradle    DatasourceID = "build_gradle"
	GradleLockfile DatasourceID = "gradle_lockfile"

	// NuGet
	NugetNuspec         DatasourceID = "nuget_nupsec"
	NugetNupkg          DatasourceID = "nuget_nupkg"
	NugetPackagesConfig DatasourceID = "nuget_packages_config"
	NugetPackagesLock   DatasourceID = "nuget_packages_lock"

	// Swift
	SwiftPackageManifestJson DatasourceID = "swift_package_manifest_json"
	SwiftPackageResolved     DatasourceID = "swift_package_resolved"

	// Standalone manifests
	BowerJson              DatasourceID = "bower_json"
	CranDescription        DatasourceID = "cran_description"
	FreebsdCompactManifest DatasourceID = "freebsd_compact_manifest"
	HaxelibJson            DatasourceID = "haxelib_json"
	OpamFile               DatasourceID = "opam_file"
	RpmMarinerManifest     DatasourceID = "rpm_mariner_manifest"
	MicrosoftUpdateMum     DatasourceID = "microsoft_update_manifest_mum"

	// Installed-package databases
	AlpineInstalledDb           DatasourceID = "alpine_installed_db"
	RpmInstalledDatabaseBdb     DatasourceID = "rpm_installed_database_bdb"
	RpmInstalledDatabaseNdb     DatasourceID = "rpm_installed_database_ndb"
	RpmInstalledDatabaseSqlite  DatasourceID = "rpm_installed_database_sqlite"
	DebianInstalledStatusDb     DatasourceID = "debian_installed_status_db"
	DebianDistrolessInstalledDb DatasourceID = "debian_distroless_installed_db"

	// System metadata
	EtcOsRelease DatasourceID = "etc_os_release"
)
